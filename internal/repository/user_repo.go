package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mentora-auth/internal/domain"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository define el contrato de persistencia para usuarios. Las
// operaciones MarkConfirmed, SetResetCode y ConsumeResetCode son atomicas por
// registro.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Update(ctx context.Context, id string, update domain.UserUpdate) (domain.User, error)
	// MarkConfirmed devuelve true solo si esta llamada paso la cuenta a confirmada.
	MarkConfirmed(ctx context.Context, id string) (bool, error)
	SetResetCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	// ConsumeResetCode escribe el nuevo hash y limpia el codigo solo si el
	// codigo almacenado sigue siendo expectedCodeHash.
	ConsumeResetCode(ctx context.Context, id, expectedCodeHash, newPasswordHash string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// DBTX es el subconjunto de pgxpool.Pool que usa el repositorio.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository usando pgx.
type PgUserRepository struct {
	db  DBTX
	now func() time.Time
}

func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const userColumns = `id, email, first_name, last_name, password_hash, role, is_confirmed, reset_code_hash, reset_code_expires_at, created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, first_name, last_name, password_hash, role, is_confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		string(user.Role),
		user.IsConfirmed,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) Update(ctx context.Context, id string, update domain.UserUpdate) (domain.User, error) {
	if update.Empty() {
		return r.GetByID(ctx, id)
	}

	sets := make([]string, 0, 4)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.FirstName != nil {
		add("first_name", *update.FirstName)
	}
	if update.LastName != nil {
		add("last_name", *update.LastName)
	}
	if update.PasswordHash != nil {
		add("password_hash", *update.PasswordHash)
	}
	add("updated_at", r.now())

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, args...))
}

func (r *PgUserRepository) MarkConfirmed(ctx context.Context, id string) (bool, error) {
	const query = `
		UPDATE users
		SET is_confirmed = TRUE, updated_at = $2
		WHERE id = $1 AND is_confirmed = FALSE
	`
	tag, err := r.db.Exec(ctx, query, id, r.now())
	if err != nil {
		return false, fmt.Errorf("confirm user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgUserRepository) SetResetCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_code_hash = $2, reset_code_expires_at = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, codeHash, expiresAt, r.now())
	if err != nil {
		return fmt.Errorf("set reset code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) ConsumeResetCode(ctx context.Context, id, expectedCodeHash, newPasswordHash string) (bool, error) {
	const query = `
		UPDATE users
		SET password_hash = $3, reset_code_hash = NULL, reset_code_expires_at = NULL, updated_at = $4
		WHERE id = $1 AND reset_code_hash = $2
	`
	tag, err := r.db.Exec(ctx, query, id, expectedCodeHash, newPasswordHash, r.now())
	if err != nil {
		return false, fmt.Errorf("consume reset code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgUserRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u         domain.User
		role      string
		resetHash *string
		resetExp  *time.Time
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&role,
		&u.IsConfirmed,
		&resetHash,
		&resetExp,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = domain.Role(role)
	if resetHash != nil {
		u.ResetCodeHash = *resetHash
	}
	u.ResetCodeExpiresAt = resetExp
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

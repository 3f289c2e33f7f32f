package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mentora-auth/internal/domain"
	"mentora-auth/internal/email"
	"mentora-auth/internal/metrics"
	"mentora-auth/internal/repository"
)

// CredentialConfig es la configuracion inmutable del ciclo de credenciales.
type CredentialConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	Issuer             string
	BcryptCost         int
	ResetCodeTTL       time.Duration
	// ConfirmURLBase se concatena con el token de confirmacion.
	ConfirmURLBase string
	Delivery       email.DeliveryOptions
}

// CredentialService coordina registro, confirmacion, login, reseteo de
// password y baja de cuentas.
type CredentialService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	dispatcher email.Dispatcher
	metrics    *metrics.Metrics
	cfg        CredentialConfig

	hasher  *PasswordHasher
	access  *TokenService
	refresh *TokenService
	confirm *TokenService
	otp     OTPGenerator
	now     func() time.Time

	// dummyHash iguala el costo de login cuando el email no existe.
	dummyHash string
}

type CredentialOption func(*CredentialService)

func WithOTPGenerator(gen OTPGenerator) CredentialOption {
	return func(s *CredentialService) {
		if gen != nil {
			s.otp = gen
		}
	}
}

// WithNow fija el reloj de tokens y expiracion de codigos.
func WithNow(now func() time.Time) CredentialOption {
	return func(s *CredentialService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewCredentialService(
	logger *zap.Logger,
	users repository.UserRepository,
	dispatcher email.Dispatcher,
	m *metrics.Metrics,
	cfg CredentialConfig,
	opts ...CredentialOption,
) (*CredentialService, error) {
	if users == nil {
		return nil, errors.New("credential service: user repository is required")
	}
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, errors.New("credential service: token secrets are required")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("credential service: access and refresh secrets must differ")
	}
	if cfg.ResetCodeTTL <= 0 {
		cfg.ResetCodeTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	s := &CredentialService{
		logger:     logger,
		users:      users,
		dispatcher: dispatcher,
		metrics:    m,
		cfg:        cfg,
		hasher:     NewPasswordHasher(cfg.BcryptCost),
		otp:        NewOTPGenerator(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	clock := WithClock(s.now)
	issuer := WithIssuer(cfg.Issuer)
	s.access = NewTokenService(cfg.AccessTokenSecret, cfg.AccessTokenTTL, TokenAccess, clock, issuer)
	s.refresh = NewTokenService(cfg.RefreshTokenSecret, cfg.RefreshTokenTTL, TokenRefresh, clock, issuer)
	// Los links de confirmacion comparten secreto y vigencia con el access token.
	s.confirm = NewTokenService(cfg.AccessTokenSecret, s.access.TTL(), TokenConfirm, clock, issuer)

	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	dummy, err := s.hasher.Hash(hex.EncodeToString(seed))
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy
	return s, nil
}

// AccessTTL y RefreshTTL permiten al transporte fijar el max-age de cookies.
func (s *CredentialService) AccessTTL() time.Duration  { return s.access.TTL() }
func (s *CredentialService) RefreshTTL() time.Duration { return s.refresh.TTL() }

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
}

func (s *CredentialService) Register(ctx context.Context, input RegisterInput) (domain.PublicUser, error) {
	role := input.Role
	if role == "" {
		role = domain.RoleLearner
	}
	if !role.SelfAssignable() {
		return domain.PublicUser{}, ErrInvalidRole
	}

	user, err := s.createAccount(ctx, input, role, false)
	if err != nil {
		return domain.PublicUser{}, err
	}
	s.metrics.Registrations.Inc()
	s.logger.Info("account registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	s.sendConfirmation(ctx, user)
	return user.Sanitize(), nil
}

// CreateAdmin crea una cuenta admin ya confirmada. Solo la usa el CLI de
// operacion; el registro publico nunca asigna el rol admin.
func (s *CredentialService) CreateAdmin(ctx context.Context, input RegisterInput) (domain.PublicUser, error) {
	user, err := s.createAccount(ctx, input, domain.RoleAdmin, true)
	if err != nil {
		return domain.PublicUser{}, err
	}
	s.logger.Info("admin account created", zap.String("user_id", user.ID))
	return user.Sanitize(), nil
}

func (s *CredentialService) createAccount(ctx context.Context, input RegisterInput, role domain.Role, confirmed bool) (domain.User, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	if err := validatePassword(input.Password); err != nil {
		return domain.User{}, err
	}

	_, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		return domain.User{}, ErrDuplicateEmail
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, internal("lookup email", err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, internal("hash password", err)
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: passwordHash,
		Role:         role,
		IsConfirmed:  confirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, internal("insert user", err)
	}
	return user, nil
}

// ResendConfirmation reenvia el link a cuentas pendientes. Emails desconocidos
// o ya confirmados no producen error para no revelar su estado.
func (s *CredentialService) ResendConfirmation(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return internal("lookup email", err)
	}
	if user.IsConfirmed {
		return nil
	}
	s.sendConfirmation(ctx, user)
	return nil
}

func (s *CredentialService) sendConfirmation(ctx context.Context, user domain.User) {
	token, err := s.confirm.Generate(domain.Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		s.logger.Error("confirmation token failed", zap.Error(err), zap.String("user_id", user.ID))
		return
	}
	msg, err := email.VerificationMessage(user.Email, s.cfg.ConfirmURLBase+token, s.confirm.TTL())
	if err != nil {
		s.logger.Error("render verification email failed", zap.Error(err))
		return
	}
	s.dispatch(ctx, msg, user.ID)
}

// LoginResult contiene el par de tokens y el usuario sin secretos.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         domain.PublicUser
}

func (s *CredentialService) Login(ctx context.Context, emailAddr, password string) (LoginResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, internal("lookup email", err)
		}
		s.hasher.Verify(password, s.dummyHash)
		s.metrics.Logins.WithLabelValues("invalid_credentials").Inc()
		return LoginResult{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.Logins.WithLabelValues("invalid_credentials").Inc()
		return LoginResult{}, ErrInvalidCredentials
	}
	// La confirmacion se revisa despues del password.
	if !user.IsConfirmed {
		s.metrics.Logins.WithLabelValues("unconfirmed").Inc()
		return LoginResult{}, ErrUnconfirmedAccount
	}

	principal := domain.Principal{UserID: user.ID, Role: user.Role}
	access, err := s.access.Generate(principal)
	if err != nil {
		return LoginResult{}, internal("sign access token", err)
	}
	refresh, err := s.refresh.Generate(principal)
	if err != nil {
		return LoginResult{}, internal("sign refresh token", err)
	}
	s.metrics.Logins.WithLabelValues("success").Inc()
	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Sanitize(),
	}, nil
}

// ConfirmOutcome es el resultado de visitar un link de confirmacion.
type ConfirmOutcome string

const (
	ConfirmFailed           ConfirmOutcome = "failed"
	ConfirmAlreadyConfirmed ConfirmOutcome = "already_confirmed"
	ConfirmNewlyConfirmed   ConfirmOutcome = "confirmed"
)

// ConfirmEmail es idempotente: tokens invalidos o usuarios inexistentes dan
// ConfirmFailed sin error; solo fallos del store devuelven error.
func (s *CredentialService) ConfirmEmail(ctx context.Context, token string) (ConfirmOutcome, error) {
	outcome, err := s.confirmEmail(ctx, token)
	s.metrics.Confirmations.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (s *CredentialService) confirmEmail(ctx context.Context, token string) (ConfirmOutcome, error) {
	principal, err := s.confirm.Verify(token)
	if err != nil {
		return ConfirmFailed, nil
	}
	user, err := s.users.GetByID(ctx, principal.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return ConfirmFailed, nil
	}
	if err != nil {
		return ConfirmFailed, internal("lookup user", err)
	}
	if user.IsConfirmed {
		return ConfirmAlreadyConfirmed, nil
	}

	changed, err := s.users.MarkConfirmed(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return ConfirmFailed, nil
	}
	if err != nil {
		return ConfirmFailed, internal("confirm user", err)
	}
	if !changed {
		return ConfirmAlreadyConfirmed, nil
	}
	s.logger.Info("email confirmed", zap.String("user_id", user.ID))
	return ConfirmNewlyConfirmed, nil
}

// IssueResetCode genera un codigo nuevo que reemplaza cualquier codigo previo.
// Solo cuentas confirmadas pueden resetear su password.
func (s *CredentialService) IssueResetCode(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUnknownEmail
	}
	if err != nil {
		return internal("lookup email", err)
	}
	if !user.IsConfirmed {
		return ErrUnconfirmedAccount
	}

	code, err := s.otp.Generate()
	if err != nil {
		return internal("generate reset code", err)
	}
	codeHash, err := hashCode(code)
	if err != nil {
		return internal("hash reset code", err)
	}
	expiresAt := s.now().Add(s.cfg.ResetCodeTTL)
	if err := s.users.SetResetCode(ctx, user.ID, codeHash, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownEmail
		}
		return internal("store reset code", err)
	}
	s.metrics.ResetCodes.Inc()

	msg, err := email.ResetCodeMessage(user.Email, code, s.cfg.ResetCodeTTL)
	if err != nil {
		s.logger.Error("render reset code email failed", zap.Error(err))
		return nil
	}
	s.dispatch(ctx, msg, user.ID)
	return nil
}

// ResetPassword consume el codigo de la cuenta identificada por email. Todos
// los rechazos usan ErrInvalidResetCode.
func (s *CredentialService) ResetPassword(ctx context.Context, emailAddr, code, newPassword string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrInvalidResetCode
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, repository.ErrNotFound) {
		return s.rejectReset()
	}
	if err != nil {
		return internal("lookup email", err)
	}
	if !user.HasPendingReset() {
		return s.rejectReset()
	}
	if user.ResetCodeExpiresAt != nil && s.now().After(*user.ResetCodeExpiresAt) {
		return s.rejectReset()
	}
	if !matchCode(code, user.ResetCodeHash) {
		return s.rejectReset()
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internal("hash password", err)
	}
	consumed, err := s.users.ConsumeResetCode(ctx, user.ID, user.ResetCodeHash, passwordHash)
	if err != nil {
		return internal("consume reset code", err)
	}
	if !consumed {
		return s.rejectReset()
	}
	s.metrics.PasswordChanges.WithLabelValues("reset", "success").Inc()
	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *CredentialService) rejectReset() error {
	s.metrics.PasswordChanges.WithLabelValues("reset", "rejected").Inc()
	return ErrInvalidResetCode
}

// ChangePassword exige el password actual antes de guardar el nuevo.
func (s *CredentialService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.getAccount(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		s.metrics.PasswordChanges.WithLabelValues("change", "rejected").Inc()
		return ErrIncorrectPassword
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internal("hash password", err)
	}
	if _, err := s.users.Update(ctx, user.ID, domain.UserUpdate{PasswordHash: &passwordHash}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return internal("update password", err)
	}
	s.metrics.PasswordChanges.WithLabelValues("change", "success").Inc()
	return nil
}

// CheckPassword confirma que password es el actual de la cuenta.
func (s *CredentialService) CheckPassword(ctx context.Context, userID, password string) error {
	user, err := s.getAccount(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return ErrIncorrectPassword
	}
	return nil
}

// DeleteAccount borra la cuenta; las cuentas admin estan protegidas sin
// importar quien lo pida. El llamador debe limpiar cookies de sesion.
func (s *CredentialService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.getAccount(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == domain.RoleAdmin {
		return ErrProtectedRole
	}
	deleted, err := s.users.Delete(ctx, user.ID)
	if err != nil {
		return internal("delete user", err)
	}
	if !deleted {
		return ErrAccountNotFound
	}
	s.metrics.AccountDeletions.Inc()
	s.logger.Info("account deleted", zap.String("user_id", user.ID))
	return nil
}

// Logout no invalida tokens: siguen validos hasta expirar. Solo registra el
// evento; el transporte limpia las cookies.
func (s *CredentialService) Logout(_ context.Context, userID string) {
	if userID != "" {
		s.logger.Info("logout", zap.String("user_id", userID))
	}
}

func (s *CredentialService) Profile(ctx context.Context, userID string) (domain.PublicUser, error) {
	user, err := s.getAccount(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return user.Sanitize(), nil
}

// Authenticate verifica un access token y devuelve el principal.
func (s *CredentialService) Authenticate(_ context.Context, accessToken string) (domain.Principal, error) {
	return s.access.Verify(accessToken)
}

func (s *CredentialService) getAccount(ctx context.Context, userID string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, ErrAccountNotFound
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrAccountNotFound
	}
	if err != nil {
		return domain.User{}, internal("lookup user", err)
	}
	return user, nil
}

// dispatch encola sin propagar errores: el cambio de estado ya es definitivo.
func (s *CredentialService) dispatch(ctx context.Context, msg email.Message, userID string) {
	if s.dispatcher == nil {
		s.logger.Warn("email dispatcher not configured", zap.String("user_id", userID))
		s.metrics.EmailEnqueueErrs.Inc()
		return
	}
	if err := s.dispatcher.Enqueue(ctx, msg, s.cfg.Delivery); err != nil {
		s.logger.Warn("enqueue email failed",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("subject", msg.Subject),
		)
		s.metrics.EmailEnqueueErrs.Inc()
	}
}

// Los emails se comparan tal como se guardaron; solo se recortan espacios.
func normalizeEmail(emailAddr string) string {
	return strings.TrimSpace(emailAddr)
}

package domain

import "time"

// Role enumera los perfiles de cuenta soportados.
type Role string

const (
	RoleLearner    Role = "learner"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Valid indica si el rol es uno de los conocidos.
func (r Role) Valid() bool {
	switch r {
	case RoleLearner, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable indica si el rol puede elegirse al registrarse.
func (r Role) SelfAssignable() bool {
	return r == RoleLearner || r == RoleInstructor
}

type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name,omitempty"`
	LastName           string     `json:"last_name,omitempty"`
	PasswordHash       string     `json:"-"`
	Role               Role       `json:"role"`
	IsConfirmed        bool       `json:"is_confirmed"`
	ResetCodeHash      string     `json:"-"`
	ResetCodeExpiresAt *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasPendingReset indica si hay un codigo de reseteo emitido y no consumido.
func (u User) HasPendingReset() bool {
	return u.ResetCodeHash != ""
}

// PublicUser es la vista sin secretos que se devuelve a los clientes.
type PublicUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Role        Role      `json:"role"`
	IsConfirmed bool      `json:"is_confirmed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sanitize elimina hash de password y codigo de reseteo.
func (u User) Sanitize() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		IsConfirmed: u.IsConfirmed,
		CreatedAt:   u.CreatedAt,
	}
}

// UserUpdate describe una actualizacion parcial; los campos nil no se tocan.
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

// Empty indica si la actualizacion no modifica ningun campo.
func (u UserUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.PasswordHash == nil
}

// Principal es la identidad autenticada de una peticion. Es un valor inmutable
// producido por la verificacion del access token.
type Principal struct {
	UserID string
	Role   Role
}

package service

import (
	"fmt"
	"net/http"
)

// Error es un fallo de dominio con mensaje estable y clasificacion de status.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

// ClientFault indica si el fallo es atribuible al cliente.
func (e *Error) ClientFault() bool {
	return e.Status < http.StatusInternalServerError
}

var (
	ErrDuplicateEmail     = &Error{Code: "duplicate_email", Message: "email is already registered", Status: http.StatusConflict}
	ErrInvalidCredentials = &Error{Code: "invalid_credentials", Message: "invalid email or password", Status: http.StatusUnauthorized}
	ErrUnconfirmedAccount = &Error{Code: "unconfirmed_account", Message: "please confirm your email", Status: http.StatusForbidden}
	ErrInvalidToken       = &Error{Code: "invalid_token", Message: "invalid or expired token", Status: http.StatusUnauthorized}
	ErrUnknownEmail       = &Error{Code: "unknown_email", Message: "you have to register first", Status: http.StatusNotFound}
	ErrInvalidResetCode   = &Error{Code: "invalid_reset_code", Message: "email or code is not valid", Status: http.StatusBadRequest}
	ErrAccountNotFound    = &Error{Code: "account_not_found", Message: "account not found", Status: http.StatusNotFound}
	ErrIncorrectPassword  = &Error{Code: "incorrect_password", Message: "current password is incorrect", Status: http.StatusBadRequest}
	ErrProtectedRole      = &Error{Code: "protected_role", Message: "admin accounts cannot be deleted", Status: http.StatusForbidden}
	ErrInvalidRole        = &Error{Code: "invalid_role", Message: "role cannot be self-assigned", Status: http.StatusBadRequest}
	ErrWeakPassword       = &Error{Code: "weak_password", Message: "password must be between 6 and 72 bytes", Status: http.StatusBadRequest}
	ErrInvalidEmail       = &Error{Code: "invalid_email", Message: "email is required", Status: http.StatusBadRequest}
	ErrInternal           = &Error{Code: "internal", Message: "something went wrong", Status: http.StatusInternalServerError}
)

// ErrTokenExpired acompaña a ErrInvalidToken cuando la causa es la expiracion.
var ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

// internal envuelve fallos de store o infraestructura conservando la causa.
func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}

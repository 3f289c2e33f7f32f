package service

import (
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordBytes = 6
	maxPasswordBytes = 72
)

// PasswordHasher hashea y verifica passwords con bcrypt usando un unico cost
// para todos los flujos.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost devuelve el work factor efectivo.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// Verify nunca falla: un hash malformado simplemente no coincide.
func (h *PasswordHasher) Verify(plaintext, hashed string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordBytes || len(password) > maxPasswordBytes {
		return ErrWeakPassword
	}
	return nil
}

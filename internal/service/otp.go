package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

const resetCodeDigits = 8

var resetCodeSpace = big.NewInt(100_000_000)

// OTPGenerator produce codigos numericos de un solo uso.
type OTPGenerator interface {
	Generate() (string, error)
}

type randomOTPGenerator struct{}

// NewOTPGenerator devuelve un generador de 8 digitos basado en crypto/rand.
func NewOTPGenerator() OTPGenerator {
	return randomOTPGenerator{}
}

func (randomOTPGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, resetCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}

// hashCode guarda el codigo como salt:sha256(salt:code).
func hashCode(code string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	return saltStr + ":" + digestCode(saltStr, code), nil
}

func matchCode(code, stored string) bool {
	saltStr, expected, ok := strings.Cut(stored, ":")
	if !ok || saltStr == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digestCode(saltStr, code)), []byte(expected)) == 1
}

func digestCode(saltStr, code string) string {
	sum := sha256.Sum256([]byte(saltStr + ":" + code))
	return base64.StdEncoding.EncodeToString(sum[:])
}

package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mentora-auth/internal/domain"
)

// TokenType separa access, refresh y confirmacion aunque compartan secreto.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
	TokenConfirm TokenType = "confirm"
)

const defaultIssuer = "mentora-auth"

// TokenClaims es el conjunto de claims que viaja firmado.
type TokenClaims struct {
	UserID    string      `json:"uid"`
	Role      domain.Role `json:"role"`
	TokenType TokenType   `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService emite y valida JWT HS256 para un secreto y una duracion.
type TokenService struct {
	secret    []byte
	ttl       time.Duration
	tokenType TokenType
	issuer    string
	now       func() time.Time
}

type TokenOption func(*TokenService)

// WithClock reemplaza el reloj usado para iat/exp y la validacion.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = issuer
		}
	}
}

func NewTokenService(secret string, ttl time.Duration, tokenType TokenType, opts ...TokenOption) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &TokenService{
		secret:    []byte(secret),
		ttl:       ttl,
		tokenType: tokenType,
		issuer:    defaultIssuer,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL devuelve la validez por defecto de los tokens emitidos.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Type devuelve el tipo de token que emite y acepta el servicio.
func (s *TokenService) Type() TokenType {
	return s.tokenType
}

// Generate firma un token para el principal con la validez por defecto.
func (s *TokenService) Generate(principal domain.Principal) (string, error) {
	return s.GenerateWithTTL(principal, s.ttl)
}

func (s *TokenService) GenerateWithTTL(principal domain.Principal, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(principal.UserID) == "" {
		return "", ErrInvalidToken
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()
	claims := TokenClaims{
		UserID:    principal.UserID,
		Role:      principal.Role,
		TokenType: s.tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify devuelve el principal firmado o ErrInvalidToken. Si la causa es la
// expiracion el error tambien cumple errors.Is(err, ErrTokenExpired).
func (s *TokenService) Verify(tokenString string) (domain.Principal, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return domain.Principal{}, ErrInvalidToken
	}
	var claims TokenClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, ErrTokenExpired
		}
		return domain.Principal{}, ErrInvalidToken
	}
	if claims.TokenType != s.tokenType {
		return domain.Principal{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" || claims.Subject != claims.UserID {
		return domain.Principal{}, ErrInvalidToken
	}
	return domain.Principal{UserID: claims.UserID, Role: claims.Role}, nil
}

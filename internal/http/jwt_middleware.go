package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mentora-auth/internal/domain"
)

const principalKey = "auth_principal"

// Authenticator verifica access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.Principal, error)
}

// PrincipalMiddleware valida el access token del header Authorization o de la
// cookie accessToken y guarda el principal en el contexto. Con required=false
// las peticiones sin token valido siguen sin principal.
func PrincipalMiddleware(auth Authenticator, cookies CookieConfig, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "auth not configured"})
			return
		}

		token := accessTokenFrom(c, cookies.AccessTokenPrefix)
		if token == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token", "message": "missing token"})
				return
			}
			c.Next()
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "message": "invalid or expired token"})
				return
			}
			c.Next()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// GetPrincipal obtiene el principal autenticado desde el contexto.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

func accessTokenFrom(c *gin.Context, prefix string) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}

	raw, err := c.Cookie(accessTokenCookie)
	if err != nil || raw == "" {
		return ""
	}
	if prefix != "" {
		raw = strings.TrimPrefix(raw, prefix)
	}
	return strings.TrimSpace(raw)
}

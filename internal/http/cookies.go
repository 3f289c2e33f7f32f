package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// CookieConfig controla como viajan los tokens de sesion.
type CookieConfig struct {
	// AccessTokenPrefix se antepone al access token en la cookie, p.ej. "Bearer ".
	AccessTokenPrefix string
	Secure            bool
}

func setSessionCookies(c *gin.Context, cfg CookieConfig, access, refresh string, accessTTL, refreshTTL time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, cfg.AccessTokenPrefix+access, int(accessTTL.Seconds()), "/", "", cfg.Secure, true)
	c.SetCookie(refreshTokenCookie, refresh, int(refreshTTL.Seconds()), "/", "", cfg.Secure, true)
}

func clearSessionCookies(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", cfg.Secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", cfg.Secure, true)
}

package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	accountH *AccountHandler,
	auth Authenticator,
	cookies CookieConfig,
	registry *prometheus.Registry,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	// La pagina de confirmacion es HTML y queda fuera del middleware JSON.
	authGroup.GET("/confirm/email/:token", authH.ConfirmEmail)

	authJSON := authGroup.Group("", jsonContentTypeMiddleware())
	authJSON.POST("/register", authH.Register)
	authJSON.POST("/login", authH.Login)
	authJSON.POST("/confirm/resend", authH.ResendConfirmation)
	authJSON.POST("/send-code", authH.SendResetCode)
	authJSON.POST("/forget-password", authH.ResetPassword)
	authJSON.POST("/logout", PrincipalMiddleware(auth, cookies, false), authH.Logout)

	users := api.Group("/users", jsonContentTypeMiddleware(), PrincipalMiddleware(auth, cookies, true))
	users.GET("/me", accountH.Me)
	users.POST("/check-password", accountH.CheckPassword)
	users.PATCH("/change-password", accountH.ChangePassword)
	users.DELETE("/me", accountH.DeleteMe)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		// FullPath evita registrar el token de confirmacion de la URL.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

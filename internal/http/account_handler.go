package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mentora-auth/internal/domain"
	"mentora-auth/internal/service"
)

// AccountHandler agrupa los endpoints de /users que requieren principal.
type AccountHandler struct {
	logger      *zap.Logger
	credentials *service.CredentialService
	cookies     CookieConfig
}

func NewAccountHandler(logger *zap.Logger, credentials *service.CredentialService, cookies CookieConfig) *AccountHandler {
	return &AccountHandler{
		logger:      logger,
		credentials: credentials,
		cookies:     cookies,
	}
}

// Me maneja GET /users/me.
func (h *AccountHandler) Me(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	user, err := h.credentials.Profile(c.Request.Context(), principal.UserID)
	if err != nil {
		writeError(c, h.logger, "profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CheckPassword maneja POST /users/check-password.
func (h *AccountHandler) CheckPassword(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, h.logger, "check password", err)
		return
	}
	if err := h.credentials.CheckPassword(c.Request.Context(), principal.UserID, req.Password); err != nil {
		writeError(c, h.logger, "check password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ChangePassword maneja PATCH /users/change-password.
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, h.logger, "change password", err)
		return
	}
	err := h.credentials.ChangePassword(c.Request.Context(), principal.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(c, h.logger, "change password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}

// DeleteMe maneja DELETE /users/me y limpia las cookies de sesion.
func (h *AccountHandler) DeleteMe(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	if err := h.credentials.DeleteAccount(c.Request.Context(), principal.UserID); err != nil {
		writeError(c, h.logger, "delete account", err)
		return
	}
	clearSessionCookies(c, h.cookies)
	c.JSON(http.StatusOK, gin.H{"status": "account_deleted"})
}

func (h *AccountHandler) principal(c *gin.Context) (domain.Principal, bool) {
	principal, ok := GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_token", "message": "missing token"})
		return domain.Principal{}, false
	}
	return principal, true
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mentora-auth/internal/domain"
	"mentora-auth/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints publicos de /auth.
type AuthHandler struct {
	logger           *zap.Logger
	credentials      *service.CredentialService
	cookies          CookieConfig
	loginRedirectURL string
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, credentials *service.CredentialService, cookies CookieConfig, loginRedirectURL string) *AuthHandler {
	return &AuthHandler{
		logger:           logger,
		credentials:      credentials,
		cookies:          cookies,
		loginRedirectURL: loginRedirectURL,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Role      string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, h.logger, "register", err)
		return
	}

	user, err := h.credentials.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      domain.Role(req.Role),
	})
	if err != nil {
		writeError(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":    user,
		"message": "check your email to confirm your account",
	})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, h.logger, "login", err)
		return
	}

	res, err := h.credentials.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "login", err)
		return
	}

	setSessionCookies(c, h.cookies, res.AccessToken, res.RefreshToken, h.credentials.AccessTTL(), h.credentials.RefreshTTL())
	c.JSON(http.StatusOK, gin.H{
		"user":         res.User,
		"access_token": res.AccessToken,
	})
}

// ConfirmEmail maneja GET /auth/confirm/email/:token. Responde HTML porque se
// abre desde el link del correo.
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	outcome, err := h.credentials.ConfirmEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.logger.Error("confirm email failed", zap.Error(err))
		writePage(c, http.StatusInternalServerError, confirmFailedPage)
		return
	}

	switch outcome {
	case service.ConfirmNewlyConfirmed:
		writePage(c, http.StatusOK, confirmSuccessPage)
	case service.ConfirmAlreadyConfirmed:
		c.Redirect(http.StatusFound, h.loginRedirectURL)
	default:
		writePage(c, http.StatusBadRequest, confirmFailedPage)
	}
}

// ResendConfirmation maneja POST /auth/confirm/resend.
func (h *AuthHandler) ResendConfirmation(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, h.logger, "resend confirmation", err)
		return
	}
	if err := h.credentials.ResendConfirmation(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "resend confirmation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmation_sent"})
}

// SendResetCode maneja POST /auth/send-code.
func (h *AuthHandler) SendResetCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, h.logger, "send code", err)
		return
	}
	if err := h.credentials.IssueResetCode(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "send code", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "code_sent"})
}

// ResetPassword maneja POST /auth/forget-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Code     string `json:"code" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, h.logger, "reset password", err)
		return
	}
	if err := h.credentials.ResetPassword(c.Request.Context(), req.Email, req.Code, req.Password); err != nil {
		writeError(c, h.logger, "reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}

// Logout maneja POST /auth/logout. No requiere token: siempre limpia cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, _ := GetPrincipal(c)
	h.credentials.Logout(c.Request.Context(), principal.UserID)
	clearSessionCookies(c, h.cookies)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mentora-auth/internal/service"
)

// writeError traduce errores de dominio a {"error", "message"} sin exponer la
// causa envuelta.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var domainErr *service.Error
	if !errors.As(err, &domainErr) {
		domainErr = service.ErrInternal
	}
	if domainErr.ClientFault() {
		logger.Debug(op+" rejected", zap.String("code", domainErr.Code))
	} else {
		logger.Error(op+" failed", zap.Error(err))
	}
	c.JSON(domainErr.Status, gin.H{"error": domainErr.Code, "message": domainErr.Message})
}

func writeBadRequest(c *gin.Context, logger *zap.Logger, op string, err error) {
	logger.Warn("invalid "+op+" request", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid request"})
}

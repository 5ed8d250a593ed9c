package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutrichat/internal/domain"
	"nutrichat/internal/service"
)

// writeError maps service and domain errors to HTTP statuses. Ownership
// mismatches surface as 500 and get logged loudly: they indicate a routing
// bug, not a client mistake.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrPromptTooLong),
		errors.Is(err, domain.ErrNoRelevantDocuments),
		errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, domain.ErrGenerationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed"})
	case errors.Is(err, domain.ErrOwnershipMismatch):
		logger.Error("ownership mismatch reached the handler", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

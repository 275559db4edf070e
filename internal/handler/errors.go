package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"async-import/internal/domain"
	"async-import/internal/logger"
	"async-import/internal/middleware"
)

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedInput):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSecurityViolation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Internal errors are logged and
// hidden behind fallback.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithRequestID(middleware.GetRequestID(c)).Error(fallback,
			logger.Err(err),
			slog.String("path", c.FullPath()),
		)
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

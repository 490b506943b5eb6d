package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"immo-backoffice/internal/database"
	"immo-backoffice/internal/logger"
	"immo-backoffice/internal/matching"
	"immo-backoffice/internal/search"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, matching.ErrInvalidSubject):
		return http.StatusUnprocessableEntity
	case errors.Is(err, search.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON error envelope. Server errors are logged and
// their details kept out of the response.
func respondError(c *gin.Context, base *zap.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "property not found"
	case http.StatusInternalServerError, http.StatusGatewayTimeout:
		logger.FromGin(c, base).Error("request failed", zap.Error(err))
		msg = http.StatusText(status)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"error":      msg,
		"request_id": logger.RequestID(c),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success":    false,
		"error":      msg,
		"request_id": logger.RequestID(c),
	})
}

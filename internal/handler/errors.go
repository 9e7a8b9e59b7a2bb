package handler

import (
	"errors"
	"net/http"

	"stockroom/internal/service"
	"stockroom/internal/statistics"
	"stockroom/pkg/response"

	"github.com/gin-gonic/gin"
)

const internalErrorMessage = "Internal server error"

// statusFor maps service and aggregator errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, statistics.ErrInvalidInput), errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope. Unmapped errors are attached to the
// gin context for middleware.ErrorLogger and the client only sees a generic message.
func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, response.Error(code, internalErrorMessage))
		return
	}
	c.JSON(code, response.Error(code, err.Error()))
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/courtside/internal/api/middleware"
	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/service"
	"github.com/timmy/courtside/internal/source"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var fetchErr *domain.FetchError
	var storageErr *domain.StorageError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, source.ErrEmptyInput), errors.Is(err, service.ErrInvalidHistory):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &fetchErr), errors.Is(err, service.ErrAnswerFailed):
		return http.StatusBadGateway
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...} with the mapped status.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error("Request handling failed")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

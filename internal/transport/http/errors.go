package httpapi

import (
	"errors"
	"net/http"

	"paperfx/internal/domain"

	"github.com/gin-gonic/gin"
)

// statusFor maps a domain error kind to the HTTP status a client should
// see. Unrecognized errors default to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRiskRejected),
		errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDeterministicSafety):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrVendorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

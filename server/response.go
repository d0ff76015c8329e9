package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/analyticore/gatekit/errors"
	"github.com/analyticore/gatekit/registry"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the standard failure envelope.
type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondWithError maps err to an HTTP status: known sentinels first,
// then the failure category.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrServiceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrDuplicateService):
		status = http.StatusConflict
	default:
		switch apperrors.Classify(err) {
		case apperrors.CategoryValidation:
			status = http.StatusBadRequest
		case apperrors.CategoryAuth:
			status = http.StatusUnauthorized
		case apperrors.CategoryRateLimit:
			status = http.StatusTooManyRequests
		case apperrors.CategoryTransient:
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, ErrorResponse{
		Error:    err.Error(),
		Category: apperrors.Classify(err).String(),
	})
}

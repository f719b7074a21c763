package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/figma-chunkstore/chunkstore/internal/chunkerr"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithForbidden sends a 403 Forbidden error
func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, "forbidden", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithChunkError translates a chunkerr sentinel into the
// matching HTTP status, falling back to 500 for anything it doesn't
// recognize.
func RespondWithChunkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chunkerr.InvalidInput):
		RespondWithError(c, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, chunkerr.NoStrategy):
		RespondWithError(c, http.StatusUnprocessableEntity, "no_strategy", err.Error(), nil)
	case errors.Is(err, chunkerr.DepthExceeded):
		RespondWithError(c, http.StatusUnprocessableEntity, "depth_exceeded", err.Error(), nil)
	case errors.Is(err, chunkerr.LockUnavailable):
		RespondWithError(c, http.StatusConflict, "lock_unavailable", err.Error(), nil)
	case errors.Is(err, chunkerr.StorageTransient):
		RespondWithError(c, http.StatusServiceUnavailable, "storage_transient", err.Error(), nil)
	case errors.Is(err, chunkerr.StoragePermanent):
		RespondWithError(c, http.StatusInternalServerError, "storage_permanent", err.Error(), nil)
	default:
		RespondWithInternalError(c, err.Error(), nil)
	}
}


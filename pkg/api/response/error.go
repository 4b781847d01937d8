package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/goclaw/recall/pkg/embedding"
	"github.com/goclaw/recall/pkg/memory"
	"github.com/goclaw/recall/pkg/storage"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id"`
}

// Common error codes
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeDimensionMismatch  = "DIMENSION_MISMATCH"
	ErrCodeEmbedding          = "EMBEDDING_UNAVAILABLE"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
)

// Common errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrValidationFailed   = errors.New("validation failed")
	ErrConflict           = errors.New("resource conflict")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("request timeout")
	ErrInternalServer     = errors.New("internal server error")
)

// HTTPStatusFromError maps retrieval and transport errors to HTTP status codes.
// Deadlines win over everything else so a timed-out embedding is a 504.
// Duplicate keys are checked before store failures since the engine wraps
// them as one.
func HTTPStatusFromError(err error) int {
	var dup *storage.DuplicateKeyError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &dup), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, memory.ErrNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, memory.ErrEmbedding), errors.Is(err, embedding.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, memory.ErrStoreUnavailable), errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, memory.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, memory.ErrInvalidOwner),
		errors.Is(err, memory.ErrInvalidTier),
		errors.Is(err, memory.ErrInvalidContent),
		errors.Is(err, memory.ErrEmptyQuery),
		errors.Is(err, embedding.ErrEmptyInput),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrValidationFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCodeFromStatus returns an error code for the given HTTP status.
func ErrorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrCodeBadRequest
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusMethodNotAllowed:
		return ErrCodeMethodNotAllowed
	case http.StatusConflict:
		return ErrCodeConflict
	case http.StatusUnprocessableEntity:
		return ErrCodeDimensionMismatch
	case http.StatusServiceUnavailable:
		return ErrCodeServiceUnavailable
	case http.StatusGatewayTimeout:
		return ErrCodeGatewayTimeout
	default:
		return ErrCodeInternalServer
	}
}

// HandleError is a convenience function to handle errors and write appropriate responses.
// Client errors keep their message. Server-side failures are reported with a
// fixed message so store and driver causes stay in the logs.
func HandleError(w http.ResponseWriter, err error, requestID string) {
	status := HTTPStatusFromError(err)
	code := ErrorCodeFromStatus(status)

	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		message = "service unavailable"
		if errors.Is(err, memory.ErrEmbedding) {
			code = ErrCodeEmbedding
			message = "embedding service unavailable"
		}
	case http.StatusGatewayTimeout:
		message = "request timeout"
	case http.StatusConflict:
		message = "resource already exists"
	case http.StatusInternalServerError:
		message = "internal server error"
	}
	Error(w, status, code, message, requestID)
}

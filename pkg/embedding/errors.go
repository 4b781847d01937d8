package embedding

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyInput is returned for blank text before any network call.
	ErrEmptyInput = errors.New("embedding: empty input")

	// ErrUnavailable marks an upstream failure that survived the retry budget.
	ErrUnavailable = errors.New("embedding: provider unavailable")

	// ErrDimension marks a backend vector whose length differs from the
	// configured dimension.
	ErrDimension = errors.New("embedding: unexpected vector dimension")
)

// UnavailableError is returned after the retry budget is exhausted.
type UnavailableError struct {
	Attempts int
	Cause    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding: provider unavailable after %d attempt(s): %v", e.Attempts, e.Cause)
}

// Unwrap returns the last upstream error.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Is reports ErrUnavailable as the sentinel for this error.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// StatusError is a non-2xx response from an HTTP backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("embedding: upstream returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("embedding: upstream returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed when repeated.
// Rate limiting and server errors are retried; other client errors are not.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

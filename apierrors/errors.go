// Package apierrors holds the transient/fatal error taxonomy and the
// shared `{error}` response convention followed by every backend endpoint.
// It lives in its own leaf package so that both the request/response client
// (api) and the push-channel client (livefeed) can classify HTTP failures
// without importing each other.
package apierrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error types for classifying backend request failures.

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// errorPayload is the error convention shared by every backend endpoint.
type errorPayload struct {
	Error string `json:"error"`
}

// ErrorMessage extracts the human-readable failure reason from a non-2xx
// response. If the body is JSON carrying an "error" field, that field wins;
// otherwise a generic message keyed by the HTTP status is synthesized.
func ErrorMessage(statusCode int, contentType string, body []byte) string {
	if strings.Contains(contentType, "application/json") {
		var payload errorPayload
		if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("request failed with status %d", statusCode)
}

// ClassifyHTTPError turns a non-2xx response into a transient or fatal error
// carrying the extracted error message.
func ClassifyHTTPError(statusCode int, contentType string, body []byte) error {
	err := fmt.Errorf("backend error (status %d): %s", statusCode, ErrorMessage(statusCode, contentType, body))

	switch {
	case statusCode == http.StatusTooManyRequests:
		// Rate limiting is transient
		return NewTransientError(err)
	case statusCode >= 500:
		// Server errors are transient
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		// Auth errors are fatal
		return NewFatalError(err)
	default:
		// Remaining 4xx errors are fatal
		return NewFatalError(err)
	}
}

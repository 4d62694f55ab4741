package api

import (
	"github.com/c360studio/repopulse/apierrors"
)

// The transient/fatal error taxonomy and the `{error}` response convention
// are defined in package apierrors (a leaf package, so livefeed can use them
// too without an import cycle) and re-exported here unchanged.

// TransientError represents a temporary error that may succeed on retry.
type TransientError = apierrors.TransientError

// FatalError represents a permanent error that should not be retried.
type FatalError = apierrors.FatalError

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return apierrors.NewTransientError(err)
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return apierrors.NewFatalError(err)
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	return apierrors.IsTransient(err)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	return apierrors.IsFatal(err)
}

// ErrorMessage extracts the human-readable failure reason from a non-2xx
// response. If the body is JSON carrying an "error" field, that field wins;
// otherwise a generic message keyed by the HTTP status is synthesized.
func ErrorMessage(statusCode int, contentType string, body []byte) string {
	return apierrors.ErrorMessage(statusCode, contentType, body)
}

// ClassifyHTTPError turns a non-2xx response into a transient or fatal error
// carrying the extracted error message.
func ClassifyHTTPError(statusCode int, contentType string, body []byte) error {
	return apierrors.ClassifyHTTPError(statusCode, contentType, body)
}

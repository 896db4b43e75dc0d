// Package apperr defines the error kinds shared by the stores, the request
// builder and the extraction client. Callers match them with errors.Is and
// errors.As; every kind wraps its cause so %w chains stay intact.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup by name misses.
var ErrNotFound = errors.New("not found")

// ErrValidation marks every *ValidationError so callers can use errors.Is.
var ErrValidation = errors.New("validation failed")

// ParseError reports malformed JSON, either a schema document or a response body.
type ParseError struct {
	// Offset is the byte offset reported by the decoder, or -1 when unknown.
	Offset int64
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("invalid JSON at offset %d: %v", e.Offset, e.Cause)
	}
	return fmt.Sprintf("invalid JSON: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ValidationError reports a user-supplied value that was rejected.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}

// Validation builds a ValidationError without a cause.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// HTTPError is returned when the remote endpoint answers with a non-2xx status.
type HTTPError struct {
	Status int
	// Detail is the server-provided error message, when the body carried one.
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP error! status: %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// Temporary reports whether a retry could plausibly succeed.
func (e *HTTPError) Temporary() bool {
	return e.Status >= 500 || e.Status == 429
}

// NetworkError wraps a transport failure (dial, TLS, reset, timeout).
type NetworkError struct {
	Op    string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ResponseFormatError is returned when a success body is not the expected shape.
type ResponseFormatError struct {
	Reason string
	Cause  error
}

func (e *ResponseFormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unexpected response format: %s: %v", e.Reason, e.Cause)
	}
	return "unexpected response format: " + e.Reason
}

func (e *ResponseFormatError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err is a network failure or a retryable HTTP status.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return false
}

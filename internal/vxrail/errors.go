package vxrail

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport error classes. Every error returned by Client.Do matches exactly
// one of these with errors.Is (or is a context error from the caller).
var (
	// ErrUnauthorized indicates the credentials were rejected. Never retry
	// with the same credentials.
	ErrUnauthorized = errors.New("VxRail Manager rejected credentials")

	// ErrNotFound indicates the endpoint or resource does not exist on this
	// VxRail Manager version.
	ErrNotFound = errors.New("not found on VxRail Manager")

	// ErrUnreachable indicates a connection, DNS or server-side failure.
	ErrUnreachable = errors.New("VxRail Manager unreachable")

	// ErrTimedOut indicates the request exceeded its timeout.
	ErrTimedOut = errors.New("request to VxRail Manager timed out")

	// ErrMalformed indicates the response body was not valid JSON.
	ErrMalformed = errors.New("malformed response from VxRail Manager")

	// ErrRejected indicates any other 4xx response.
	ErrRejected = errors.New("request rejected by VxRail Manager")
)

// APIError is an HTTP-level failure from the management API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string // Body excerpt, may be empty
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Unwrap returns the error class for the status code.
func (e *APIError) Unwrap() error {
	return classifyStatus(e.StatusCode)
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrTimedOut
	case code >= 500:
		return ErrUnreachable
	default:
		return ErrRejected
	}
}

// IsUnauthorized returns true if the error is a credential rejection.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound returns true if the endpoint or resource was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true for failures that may succeed on a later attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimedOut)
}

// Class returns a short label for the error class, used in logs and metrics.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimedOut):
		return "timed_out"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "error"
	}
}

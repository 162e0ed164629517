package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common client errors
var (
	// ErrClientClosed is returned when attempting to use a closed client
	ErrClientClosed = errors.New("client is closed")

	// ErrBadRequest matches 400 responses
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized matches 401 responses
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden matches 403 responses
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound matches 404 responses
	ErrNotFound = errors.New("not found")

	// ErrConflict matches 409 responses, e.g. a structure set already locked by another session
	ErrConflict = errors.New("conflict")

	// ErrRateLimited matches 429 responses
	ErrRateLimited = errors.New("request rate limited")

	// ErrServer matches any 5xx response
	ErrServer = errors.New("server error")
)

// HTTPError is returned for every non-success response.
type HTTPError struct {
	Method     string // HTTP method of the failed request
	URI        string // Full request URI
	StatusCode int    // Response status code
	Body       string // Response body, truncated
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %s %s failed with status %d: %s", e.Method, e.URI, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %s %s failed with status %d", e.Method, e.URI, e.StatusCode)
}

// Is lets errors.Is match the sentinel for the response status.
func (e *HTTPError) Is(target error) bool {
	sentinel := ErrorFromStatus(e.StatusCode)
	return sentinel != nil && target == sentinel
}

// ErrorFromStatus converts an HTTP status code to a sentinel error, or nil if
// there is none for it.
func ErrorFromStatus(code int) error {
	switch {
	case code == http.StatusBadRequest:
		return ErrBadRequest
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500 && code <= 599:
		return ErrServer
	default:
		return nil
	}
}

// StatusCode extracts the status of an HTTPError anywhere in err's chain,
// or 0 if there is none.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

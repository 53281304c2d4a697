package source

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyBaseURL signals that the source was created without a backend address
var ErrEmptyBaseURL = errors.New("empty base URL")

// ErrInvalidTimeout signals a non-positive request timeout
var ErrInvalidTimeout = errors.New("invalid request timeout")

var errMalformedBody = errors.New("response body is not valid JSON")

// TransportError is returned when no response reached the client (dial, DNS, timeout, cancellation)
type TransportError struct {
	Path string
	Err  error
}

// Error returns the error message
func (e *TransportError) Error() string {
	return fmt.Sprintf("network error requesting %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is returned when a response was received but carried an error status or a malformed body
type ServerError struct {
	Path       string
	StatusCode int
	Err        error
}

// Error returns the error message
func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad response from %s: %v", e.Path, e.Err)
	}

	return fmt.Sprintf("server error requesting %s: %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap returns the underlying cause, if any
func (e *ServerError) Unwrap() error {
	return e.Err
}

type errMissingKey string

func (e errMissingKey) Error() string {
	return "JSON key not found in response: " + string(e)
}

type errUnknownDomain string

func (e errUnknownDomain) Error() string {
	return "unknown domain: " + string(e)
}

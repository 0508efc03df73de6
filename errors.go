package goqsw

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is to tell a bad host from bad
// credentials from a device-side failure. ErrInternalServer also matches
// ErrAPI.
var (
	ErrInvalidHost     = errors.New("qsw: invalid host")
	ErrAPITimeout      = errors.New("qsw: api timeout")
	ErrLogin           = errors.New("qsw: login failed")
	ErrAPI             = errors.New("qsw: api error")
	ErrInternalServer  = fmt.Errorf("qsw: internal server error: %w", ErrAPI)
	ErrInvalidResponse = errors.New("qsw: invalid response")
)

// APIError describes a failed API call, carrying enough of the request and
// response for diagnostics.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string

	kind  error
	cause error
}

func newAPIError(kind error, method, path string, status int, body string, cause error) *APIError {
	return &APIError{
		Method: method,
		Path:   path,
		Status: status,
		Body:   body,
		kind:   kind,
		cause:  cause,
	}
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%v @ %s /%s", e.kind, e.Method, e.Path)
	if e.Status != 0 {
		msg += fmt.Sprintf(" HTTP=%d", e.Status)
	}
	if e.Body != "" {
		msg += " Resp=" + e.Body
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.kind }

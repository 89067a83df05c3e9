package apstra

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	errMissingToken = errors.New("no token in login response")
	errEmptyBody    = errors.New("empty response body")
	errMissingItems = errors.New("response has no items field")
)

// AuthError means no credential could be obtained. No resource request is
// attempted after one.
type AuthError struct {
	StatusCode int    // zero when the login request never got a response
	Body       string // login response text, verbatim
	Err        error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("apstra: authentication failed (HTTP %d): %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("apstra: authentication failed: %v", e.Err)
	default:
		return fmt.Sprintf("apstra: authentication failed: %d - %s", e.StatusCode, e.Body)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx answer from the controller.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("apstra: %s %s: HTTP %d - %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Retryable is true for throttling and server-side failures.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TransportError covers network faults and payloads that could not be
// encoded or decoded.
type TransportError struct {
	Op    string
	Err   error
	Codec bool // encode/decode failure rather than a network fault
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("apstra: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable is false for codec failures: repeating the call yields the same
// payload.
func (e *TransportError) Retryable() bool { return !e.Codec }

func decodeError(op string, err error) error {
	return &TransportError{Op: "decode " + op, Err: err, Codec: true}
}

// NotFoundError is returned by two-step operations when a human-readable
// name does not resolve to an id. The second request is never sent.
type NotFoundError struct {
	Resource string
	Name     string
	Scope    string
}

func (e *NotFoundError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s %q not found in %s", e.Resource, e.Name, e.Scope)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
}

package oauth

import (
	"errors"
	"fmt"
)

// OAuth2 error codes emitted on the wire.
const (
	// ErrorCodeInvalidClient is returned when no client could be resolved
	// or a resolved client failed credential validation.
	ErrorCodeInvalidClient = "invalid_client"

	// ErrorCodeInvalidRequest is returned when the request is malformed,
	// for example when a required client identifier is missing.
	ErrorCodeInvalidRequest = "invalid_request"

	// ErrorCodeServerError is returned for internal faults after a client
	// was successfully authenticated.
	ErrorCodeServerError = "server_error"

	// ErrorCodeSlowDown is returned when the caller exceeds the rate limit.
	ErrorCodeSlowDown = "slow_down"
)

// Sentinel errors for client resolution.
var (
	// ErrInvalidClient indicates that no client could be resolved, a
	// TLS-bound credential did not match, or a Basic header was malformed.
	ErrInvalidClient = errors.New("invalid client")

	// ErrNotAuthorized indicates that a credential was supplied but failed
	// validation.
	ErrNotAuthorized = errors.New("client not authorized")

	// ErrInvalidRequest indicates a malformed request, such as a missing
	// client identifier.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrClientNotFound is returned by stores when no record exists for
	// the requested client identifier.
	ErrClientNotFound = errors.New("client not found")
)

// Error is a JSON-serializable OAuth2 error body.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// NewError creates an error body with the given code and an optional
// human-readable description.
func NewError(code string, description ...string) *Error {
	e := &Error{Code: code}
	if len(description) > 0 {
		e.Description = description[0]
	}
	return e
}

// ServiceError is raised by collaborators such as the client store and may
// carry a structured OAuth error that the reporter forwards verbatim when
// custom error bodies are enabled.
type ServiceError struct {
	OAuthError *Error
	Cause      error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("oauth service error: %v", e.Cause)
	}
	if e.OAuthError != nil {
		return fmt.Sprintf("oauth service error: %s", e.OAuthError.Code)
	}
	return "oauth service error"
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

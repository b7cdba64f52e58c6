// errors.go defines the error taxonomy of the API gateway.

package api

import (
	"fmt"
)

// Error codes returned by the API in error.code.
const (
	// ErrorCodeValidation marks a request rejected by parameter validation.
	// Extra diagnostics are carried in error.exc.
	ErrorCodeValidation = 3

	// ErrorCodeInvalidSecret marks a project secret that does not match.
	ErrorCodeInvalidSecret = 7

	// ErrorCodeProjectNotFound marks an unknown project id.
	ErrorCodeProjectNotFound = 8
)

// APIError is returned when the API answers with a structured error object.
// It is an application-level rejection, not a transport problem.
type APIError struct {
	// Method is the API method that was called.
	Method string

	// Code is the API error code (error.code).
	Code int

	// Message is the API error message, extended with error.exc for validation errors.
	Message string

	// Status is the HTTP-like status reported by the API (error.status).
	Status int

	// Exc is the extra diagnostic text (error.exc), if any.
	Exc string

	// Response is the parsed response that carried the error.
	Response *Response
}

func (e *APIError) Error() string {
	return fmt.Sprintf("failed to call API method %s: error code %d: %s", e.Method, e.Code, e.Message)
}

// ResponseError is returned when a call fails below the API level:
// the request could not be sent or the body is not the expected JSON object.
type ResponseError struct {
	Method     string
	StatusCode int
	Body       string // first 512 bytes
	Err        error
}

func (e *ResponseError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("API method %s: request failed: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("API method %s: invalid response (HTTP %d): %v", e.Method, e.StatusCode, e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// AuthErrorKind classifies a failed hard auth check.
type AuthErrorKind string

const (
	// AuthInvalidSecret means the project exists but the secret was rejected.
	AuthInvalidSecret AuthErrorKind = "invalid_secret"

	// AuthUnknownProject means the project id is not known to the API.
	AuthUnknownProject AuthErrorKind = "unknown_project"

	// AuthFailed covers every other failure, including network errors.
	AuthFailed AuthErrorKind = "failed"
)

// AuthError is returned by HardCheckAuth.
type AuthError struct {
	Kind      AuthErrorKind
	ProjectID string
	Err       error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthInvalidSecret:
		return fmt.Sprintf("auth check failed: secret for project %s is invalid, check the server or client secret", e.ProjectID)
	case AuthUnknownProject:
		return fmt.Sprintf("auth check failed: project %s does not exist, check the project id", e.ProjectID)
	default:
		return fmt.Sprintf("auth check failed: %v", e.Err)
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

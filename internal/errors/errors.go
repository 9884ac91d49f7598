// Package errors provides the proxy's domain errors.
//
// Every failure the tagging client can see is an *Error with a Code. The code
// decides the recovery action the orchestrator takes and the HTTP status the
// admin API reports; the tagging routes only ever show the message.
//
//	if errors.Is(err, errors.ErrNavigation) {
//	    session.Close()
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

const (
	// CodeMissingParameter means required request inputs were absent.
	CodeMissingParameter Code = "MISSING_PARAMETER"
	// CodeCaptureFailed means the expected AJAX payload was never observed.
	CodeCaptureFailed Code = "CAPTURE_FAILED"
	// CodeNavigation covers any failure while driving the browser, challenge pages included.
	CodeNavigation Code = "NAVIGATION"
	// CodeDependency means a sub-fetch of a composite operation failed.
	CodeDependency Code = "DEPENDENCY"
	// CodeUpstreamUnavailable means the circuit breaker is refusing upstream calls.
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeNotFound            Code = "NOT_FOUND"
	CodeValidation          Code = "VALIDATION"
	CodeInternal            Code = "INTERNAL"
)

// HTTPStatus returns the HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeMissingParameter, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeCaptureFailed, CodeNavigation, CodeDependency:
		return http.StatusBadGateway
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy with details attached.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrMissingParameter    = &Error{Code: CodeMissingParameter, Message: "missing parameter"}
	ErrCaptureFailed       = &Error{Code: CodeCaptureFailed, Message: "Couldn't capture AJAX response"}
	ErrNavigation          = &Error{Code: CodeNavigation, Message: "navigation failed"}
	ErrDependency          = &Error{Code: CodeDependency, Message: "dependency failed"}
	ErrUpstreamUnavailable = &Error{Code: CodeUpstreamUnavailable, Message: "upstream temporarily unavailable"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal            = &Error{Code: CodeInternal, Message: "internal error"}
)

// MissingParameter creates a missing parameter error.
func MissingParameter(msg string) *Error {
	return &Error{Code: CodeMissingParameter, Message: msg}
}

// CaptureFailed creates a capture failure for the given endpoint.
func CaptureFailed(endpoint string) *Error {
	return &Error{Code: CodeCaptureFailed, Message: ErrCaptureFailed.Message, Details: map[string]string{"endpoint": endpoint}}
}

// Navigation wraps a browser failure.
func Navigation(err error, msg string) *Error {
	return &Error{Code: CodeNavigation, Message: msg, cause: err}
}

// Navigationf wraps a browser failure with a formatted message.
func Navigationf(err error, format string, args ...any) *Error {
	return &Error{Code: CodeNavigation, Message: fmt.Sprintf(format, args...), cause: err}
}

// Dependency creates a composite-operation failure.
func Dependency(msg string) *Error {
	return &Error{Code: CodeDependency, Message: msg}
}

// UpstreamUnavailable wraps a refused upstream call.
func UpstreamUnavailable(err error) *Error {
	return &Error{Code: CodeUpstreamUnavailable, Message: ErrUpstreamUnavailable.Message, cause: err}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

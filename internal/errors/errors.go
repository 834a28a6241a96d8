// Package errors defines the flat, finite error taxonomy every orchestrator
// component reports through. Components never propagate provider-native or
// reasoner-native exceptions upward; they classify failures into one of the
// Codes below before returning.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error classification with a fixed HTTP mapping.
type Code string

const (
	AuthTokenMissing   Code = "AUTH_TOKEN_MISSING"
	AuthTokenInvalid   Code = "AUTH_TOKEN_INVALID"
	AuthTokenExpired   Code = "AUTH_TOKEN_EXPIRED"
	UserNotFound       Code = "USER_NOT_FOUND"
	ValidationError    Code = "VALIDATION_ERROR"
	InvalidProvider    Code = "INVALID_PROVIDER"
	MissingCredentials Code = "MISSING_CREDENTIALS"
	ToolExecutionError Code = "TOOL_EXECUTION_ERROR"
	ConnectorUnreachable Code = "CONNECTOR_UNREACHABLE"
	CircuitOpen        Code = "CIRCUIT_OPEN"
	RateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	UpstreamRateLimit  Code = "UPSTREAM_RATE_LIMIT"
	DatabaseError      Code = "DATABASE_ERROR"
	InternalError      Code = "INTERNAL_ERROR"
)

// httpStatus is the fixed code-to-transport-status mapping from the error
// taxonomy design.
var httpStatus = map[Code]int{
	AuthTokenMissing:     http.StatusUnauthorized,
	AuthTokenInvalid:     http.StatusUnauthorized,
	AuthTokenExpired:     http.StatusUnauthorized,
	UserNotFound:         http.StatusNotFound,
	ValidationError:      http.StatusUnprocessableEntity,
	InvalidProvider:      http.StatusBadRequest,
	MissingCredentials:   http.StatusForbidden,
	ToolExecutionError:   http.StatusInternalServerError,
	ConnectorUnreachable: http.StatusBadGateway,
	CircuitOpen:          http.StatusServiceUnavailable,
	RateLimitExceeded:    http.StatusTooManyRequests,
	UpstreamRateLimit:    http.StatusBadGateway,
	DatabaseError:        http.StatusInternalServerError,
	InternalError:        http.StatusInternalServerError,
}

// HTTPStatus returns the transport status for a Code, defaulting to 500 for
// an unrecognized code (which should not happen for codes defined above).
func (c Code) HTTPStatus() int {
	if status, ok := httpStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is the canonical error value every fallible orchestrator path
// returns. It is a value, not a control-flow exception: callers inspect
// Code and Details rather than relying on string matching.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Cause   error
}

// New creates a classified error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap classifies an existing error, preserving it as the unwrap target.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithDetails attaches structured context to the error (e.g. provider_id,
// tool_name) and returns the receiver for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the transport status this error maps to.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Is lets errors.Is(err, errors.New(code, "")) match on Code alone, matching
// the pattern of comparing sentinel-shaped classified errors.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// As extracts a *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the Code of err if it is (or wraps) a classified Error,
// else InternalError — the catch-all for anything that escaped
// classification at a lower layer.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return InternalError
}

// IsCode reports whether err classifies as the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Package apperr defines the error taxonomy shared by ingestion, storage and the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindPersistence   Kind = "persistence"
	KindConfiguration Kind = "configuration"
	KindBroadcast     Kind = "broadcast"
	KindNotFound      Kind = "not_found"
	KindUnauthorized  Kind = "unauthorized"
	KindForbidden     Kind = "forbidden"
)

// Machine-stable reason codes returned to HTTP callers.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnknownDataType = "UNKNOWN_DATA_TYPE"
	CodeMissingField    = "MISSING_FIELD"
	CodeInvalidField    = "INVALID_FIELD"
	CodeInvalidBounds   = "INVALID_BOUNDS"
	CodePersistence     = "PERSISTENCE_ERROR"
	CodeDBTimeout       = "DB_TIMEOUT"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConfiguration   = "CONFIGURATION_ERROR"
	CodeBroadcast       = "BROADCAST_ERROR"
	CodeRateLimited     = "RATE_LIMITED"
)

// Error carries a kind, a stable code and a human-readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a validation error.
func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Configuration builds a configuration error, e.g. a setpoint naming an unknown field.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds an authentication error.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden builds an authorization error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: message}
}

// Broadcast wraps a delivery failure to one connection.
func Broadcast(connID string, err error) *Error {
	return &Error{Kind: KindBroadcast, Code: CodeBroadcast, Message: "delivery to " + connID + " failed", Err: err}
}

// Persistence wraps a database failure. Deadline overruns get their own code.
func Persistence(op string, err error) *Error {
	code := CodePersistence
	if errors.Is(err, context.DeadlineExceeded) {
		code = CodeDBTimeout
	}
	return &Error{Kind: KindPersistence, Code: code, Message: op + " failed", Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// CodeOf returns the stable code of err, defaulting to PERSISTENCE_ERROR for foreign errors.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodePersistence
}

// HTTPStatus maps an error to a response status.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation, KindConfiguration:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindPersistence:
		if e.Code == CodeDBTimeout {
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}

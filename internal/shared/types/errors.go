package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies request failures on the wire
type ErrorCode string

const (
	ErrNotFound        ErrorCode = "not_found"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrSpawnFailure    ErrorCode = "spawn_failure"
	ErrTransport       ErrorCode = "transport_error"
	ErrInternal        ErrorCode = "internal"
)

// Error is a code-carrying error. Domain packages return it directly;
// handlers map the code to a transport status. A process exiting non-zero
// is never an Error, only failure to start one is.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error with a formatted message
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing file, directory, session, or process
func NotFound(format string, args ...interface{}) *Error {
	return NewError(ErrNotFound, format, args...)
}

// InvalidArgument reports a missing or malformed request field
func InvalidArgument(format string, args ...interface{}) *Error {
	return NewError(ErrInvalidArgument, format, args...)
}

// SpawnFailure reports a command that could not start
func SpawnFailure(format string, args ...interface{}) *Error {
	return NewError(ErrSpawnFailure, format, args...)
}

// TransportError reports a connection drop mid-stream
func TransportError(format string, args ...interface{}) *Error {
	return NewError(ErrTransport, format, args...)
}

// Internal reports an unclassified server-side failure
func Internal(format string, args ...interface{}) *Error {
	return NewError(ErrInternal, format, args...)
}

// CodeOf extracts the taxonomy code from err, unwrapping as needed.
// Unclassified errors report as internal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// IsNotFound reports whether err classifies as not_found
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound
}

// IsInvalidArgument reports whether err classifies as invalid_argument
func IsInvalidArgument(err error) bool {
	return CodeOf(err) == ErrInvalidArgument
}

// HTTPStatus maps an error code to its HTTP response status
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidArgument:
		return http.StatusBadRequest
	case ErrSpawnFailure:
		return http.StatusUnprocessableEntity
	case ErrTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the wire form of an Error inside a response envelope
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Body converts an error into its wire form
func Body(err error) *ErrorBody {
	var e *Error
	if errors.As(err, &e) {
		return &ErrorBody{Code: e.Code, Message: e.Message}
	}
	return &ErrorBody{Code: ErrInternal, Message: err.Error()}
}

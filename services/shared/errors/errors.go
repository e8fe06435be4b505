// Package errors provides coded error types shared by the socialauth packages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents an application error code.
type Code string

// Error codes for the application.
const (
	// General errors
	CodeInternal     Code = "INTERNAL"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeUnavailable  Code = "UNAVAILABLE"
	CodeTimeout      Code = "TIMEOUT"
	CodeCanceled     Code = "CANCELED"

	// Login-specific errors
	CodeSDKError     Code = "SDK_ERROR"
	CodeUnsupported  Code = "UNSUPPORTED"
	CodeDecodeError  Code = "DECODE_ERROR"
	CodeSuperseded   Code = "SUPERSEDED"
	CodeOAuthError   Code = "OAUTH_ERROR"
	CodeStateUnknown Code = "STATE_UNKNOWN"
)

// Error is the application's custom error type with code and details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"` // Underlying error, not serialized
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the target error has the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Err:     e.Err,
	}
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Err:     err,
	}
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// InvalidInput creates an invalid input error.
func InvalidInput(message string) *Error {
	return New(CodeInvalidInput, message)
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// RateLimited creates a rate limited error.
func RateLimited(message string) *Error {
	return New(CodeRateLimited, message)
}

// Canceled creates a canceled error.
func Canceled(message string) *Error {
	return New(CodeCanceled, message)
}

// SDKError wraps a failure reported by a provider SDK.
func SDKError(message string, err error) *Error {
	return Wrap(CodeSDKError, message, err)
}

// Unsupported creates an unsupported capability error.
func Unsupported(message string) *Error {
	return New(CodeUnsupported, message)
}

// DecodeError wraps a payload decoding failure.
func DecodeError(message string, err error) *Error {
	return Wrap(CodeDecodeError, message, err)
}

// Superseded creates an error for work replaced by newer work.
func Superseded(message string) *Error {
	return New(CodeSuperseded, message)
}

// OAuthError creates an OAuth protocol error.
func OAuthError(message string) *Error {
	return New(CodeOAuthError, message)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *Error) HTTPStatusCode() int {
	switch e.Code {
	case CodeInvalidInput, CodeOAuthError, CodeStateUnknown, CodeDecodeError:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnsupported:
		return http.StatusNotImplemented
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable, CodeSDKError:
		return http.StatusServiceUnavailable
	case CodeSuperseded:
		return http.StatusConflict
	case CodeCanceled:
		return 499 // Client Closed Request
	default:
		return http.StatusInternalServerError
	}
}

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, or CodeInternal if not found.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

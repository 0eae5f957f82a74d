package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error and decides its HTTP status.
type Kind int

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"-"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnsupported:
		return http.StatusUnsupportedMediaType
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error kinds
const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindTooLarge
	KindUnsupported
	KindRateLimited
	KindUnavailable
)

func newError(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Validation(message string, err error) *AppError {
	return newError(KindValidation, message, err)
}

func Unauthenticated(message string, err error) *AppError {
	return newError(KindUnauthenticated, message, err)
}

func Forbidden(message string) *AppError {
	return newError(KindForbidden, message, nil)
}

// NotFound builds "<resource> not found".
func NotFound(resource string, err error) *AppError {
	return newError(KindNotFound, fmt.Sprintf("%s not found", resource), err)
}

func Conflict(message string, err error) *AppError {
	return newError(KindConflict, message, err)
}

func TooLarge(message string) *AppError {
	return newError(KindTooLarge, message, nil)
}

func Unsupported(message string) *AppError {
	return newError(KindUnsupported, message, nil)
}

func RateLimited(message string) *AppError {
	return newError(KindRateLimited, message, nil)
}

func Unavailable(message string, err error) *AppError {
	return newError(KindUnavailable, message, err)
}

func Internal(err error) *AppError {
	return newError(KindInternal, "internal server error", err)
}

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

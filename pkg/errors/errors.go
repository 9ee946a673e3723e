// Package errors defines the structured error types returned by the
// request-authentication layer. Every failure a caller can observe maps to one of
// the predefined constructors below; handlers and middleware translate them into
// JSON error bodies without leaking internal state.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of authentication failure.
type Kind string

const (
	KindSignatureMissing   Kind = "signature_missing"
	KindSignatureMalformed Kind = "signature_malformed"
	KindSignatureExpired   Kind = "signature_expired"
	KindSignatureMismatch  Kind = "signature_mismatch"
	KindTokenInvalid       Kind = "token_invalid"
	KindTokenExpired       Kind = "token_expired"
	KindTokenRevoked       Kind = "token_revoked"
	KindRateLimited        Kind = "rate_limited"
	KindLockContended      Kind = "lock_contended"
	KindInternal           Kind = "internal_error"
	KindInvalidRequest     Kind = "invalid_request"
	KindUnauthorized       Kind = "unauthorized"
)

// AppError is a structured application error carrying a stable business code and
// the HTTP status it should surface as.
type AppError struct {
	Kind       Kind
	Code       int
	HTTPStatus int
	Message    string
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *AppError) Unwrap() error { return e.cause }

// WithCause attaches an underlying error and returns a copy.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.cause = cause
	return &clone
}

// WithMessage overrides the caller-visible message and returns a copy.
func (e *AppError) WithMessage(msg string) *AppError {
	clone := *e
	clone.Message = msg
	return &clone
}

// New creates an AppError with the given kind, business code, HTTP status and message.
func New(kind Kind, code int, httpStatus int, message string) *AppError {
	return &AppError{Kind: kind, Code: code, HTTPStatus: httpStatus, Message: message}
}

// Business codes follow the original wire contract: 3xxx for signature failures,
// standard HTTP codes elsewhere.
var (
	ErrSignatureMissing   = New(KindSignatureMissing, 3001, http.StatusUnauthorized, "signature missing")
	ErrSignatureMalformed = New(KindSignatureMalformed, 3002, http.StatusUnauthorized, "signature malformed")
	ErrSignatureExpired   = New(KindSignatureExpired, 3004, http.StatusUnauthorized, "signature expired")
	ErrSignatureMismatch  = New(KindSignatureMismatch, 3005, http.StatusUnauthorized, "signature verification failed")

	ErrTokenInvalid = New(KindTokenInvalid, 401, http.StatusUnauthorized, "token invalid")
	ErrTokenExpired = New(KindTokenExpired, 401, http.StatusUnauthorized, "token expired")
	ErrTokenRevoked = New(KindTokenRevoked, 401, http.StatusUnauthorized, "token revoked")

	ErrRateLimited   = New(KindRateLimited, 429, http.StatusTooManyRequests, "too many requests")
	ErrLockContended = New(KindLockContended, 409, http.StatusConflict, "lock contended")

	ErrUnauthorized   = New(KindUnauthorized, 401, http.StatusUnauthorized, "unauthorized")
	ErrInvalidRequest = New(KindInvalidRequest, 400, http.StatusBadRequest, "invalid request")
	ErrInternal       = New(KindInternal, 500, http.StatusInternalServerError, "internal error")
)

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind == kind
	}
	return false
}

// Internal wraps an unexpected error into an opaque internal AppError.
func Internal(cause error) *AppError {
	return ErrInternal.WithCause(cause)
}

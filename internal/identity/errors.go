package identity

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies identity failures. Values follow the "auth/<reason>" scheme
// browser SDKs report, so clients can keep their existing error handling.
type Code string

const (
	CodeInvalidCredential    Code = "auth/invalid-credential"
	CodeEmailAlreadyInUse    Code = "auth/email-already-in-use"
	CodeInvalidEmail         Code = "auth/invalid-email"
	CodeWeakPassword         Code = "auth/weak-password"
	CodeUserNotFound         Code = "auth/user-not-found"
	CodeTooManyRequests      Code = "auth/too-many-requests"
	CodeNetworkRequestFailed Code = "auth/network-request-failed"
	CodeInternal             Code = "auth/internal-error"
)

// Error is the failure type returned by identity services.
type Error struct {
	Code    Code
	Message string
	Err     error

	// RetryAfter is set on CodeTooManyRequests when the lockout end is known.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so the sentinels below
// work with errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidCredential    = &Error{Code: CodeInvalidCredential, Message: "invalid email or password"}
	ErrEmailAlreadyInUse    = &Error{Code: CodeEmailAlreadyInUse, Message: "email address is already in use"}
	ErrInvalidEmail         = &Error{Code: CodeInvalidEmail, Message: "email address is badly formatted"}
	ErrWeakPassword         = &Error{Code: CodeWeakPassword, Message: "password is too weak"}
	ErrUserNotFound         = &Error{Code: CodeUserNotFound, Message: "user not found"}
	ErrTooManyRequests      = &Error{Code: CodeTooManyRequests, Message: "too many attempts, try again later"}
	ErrNetworkRequestFailed = &Error{Code: CodeNetworkRequestFailed, Message: "network request failed"}
)

// Internal wraps an unexpected backend failure.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// CodeOf returns the code of an identity error, or "" for any other error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

package models

import (
	"errors"
	"fmt"
)

// ErrorKind tags an error with its handling category. The HTTP boundary owns
// the mapping from kind to status code; the core never picks status codes.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindDuplicate  ErrorKind = "duplicate"
	KindExternal   ErrorKind = "external_unavailable"
	KindQuota      ErrorKind = "quota_or_rate"
	KindPIILeakage ErrorKind = "pii_leakage"
	KindCheckpoint ErrorKind = "checkpoint_corruption"
	KindInternal   ErrorKind = "internal"
)

// AppError is a structured error carrying a kind and a safe, surfaceable
// message. Sensitive detail stays in the wrapped error and is only logged.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError builds an AppError with the given kind and message.
func NewError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// WrapError builds an AppError wrapping a cause.
func WrapError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind of an error, defaulting to KindInternal for
// untagged errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// SafeMessage returns the surfaceable message of an error. Untagged errors
// map to a generic message so internal detail never leaks to clients.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

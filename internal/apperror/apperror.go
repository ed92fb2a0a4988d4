// Package apperror defines the application's error taxonomy.
//
// Every error a service returns either wraps one of the sentinel errors below
// (through an *AppError) or is an unexpected failure. The HTTP layer maps the
// sentinels to status codes; anything else becomes a 500.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMessage is NotFound with a caller-chosen message.
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// DuplicateKey reports a write rejected by a uniqueness constraint.
// Field names the constrained column (e.g. "slug", "name", "email").
func DuplicateKey(resource, field, value string) *AppError {
	return &AppError{
		Err:     ErrDuplicateKey,
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Field:   field,
	}
}

// Unauthorized covers missing identities, bad credentials and ownership
// checks. Records that exist but belong to someone else are reported the
// same way as records that do not exist.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks a required role.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// IsDuplicateField reports whether err is a DuplicateKey on the given field.
func IsDuplicateField(err error, field string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && errors.Is(appErr.Err, ErrDuplicateKey) && appErr.Field == field
}

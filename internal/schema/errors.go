package schema

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks. Every typed error below unwraps to one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("not authenticated")
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("conflict")
)

// ValidationError reports input that violates a field constraint
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AuthorizationError reports a caller the policy does not admit
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// NotFoundError reports a missing record
type NotFoundError struct {
	Model string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Model, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a write rejected by a uniqueness rule
type ConflictError struct {
	Model   string
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Model, e.Message)
}

func (e *ConflictError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConflict}
	}
	return []error{ErrConflict, e.Err}
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

package rbac

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("resource conflict")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrNoActiveTenant      = errors.New("no active tenant")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrLockedOut           = errors.New("account locked")
)

// ValidationError reports a rejected write and names the offending field.
type ValidationError struct {
	Field    string
	Message  string
	conflict bool
}

// NewValidationError builds a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewConflictError builds a validation error caused by a uniqueness violation.
func NewConflictError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, conflict: true}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput, e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput, and ErrConflict for uniqueness violations.
func (e *ValidationError) Unwrap() []error {
	if e.conflict {
		return []error{ErrInvalidInput, ErrConflict}
	}
	return []error{ErrInvalidInput}
}

// Conflict reports whether the error stems from a uniqueness violation.
func (e *ValidationError) Conflict() bool {
	return e.conflict
}

// CrossTenantRolesMessage is returned when a membership references another company's role.
const CrossTenantRolesMessage = "Roles must belong to the same company as the requesting user"

// Package services provides the CRUD operations behind the dashboard API and
// their error types.
package services

import (
	"errors"
	"fmt"

	"github.com/gonbaum/composite/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidSortField  = errors.New("invalid sort field")
	ErrInvalidSortOrder  = errors.New("invalid sort order")
	ErrInvalidAction     = errors.New("invalid action")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrInvalidActionLog  = errors.New("invalid action log")

	// Business Logic Conflicts (409 Conflict).
	ErrNameTaken = errors.New("name already in use")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrInvalidActionLog)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNameTaken) || persistence.IsAlreadyExists(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error with context.
func NewConflictError(op, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    "CONFLICT",
		Message: message,
		Err:     err,
	}
}

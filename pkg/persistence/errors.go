// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrActionNotFound indicates no action matched the given identifier.
	ErrActionNotFound = errors.New("action not found")

	// ErrActionAlreadyExists indicates another action already uses the name.
	ErrActionAlreadyExists = errors.New("action already exists")

	// ErrCredentialNotFound indicates no credential matched the given identifier.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialAlreadyExists indicates another credential already uses the name.
	ErrCredentialAlreadyExists = errors.New("credential already exists")

	// ErrInvalidSortField indicates a sort field outside the allowlist.
	ErrInvalidSortField = errors.New("invalid sort field")

	// ErrInvalidSortOrder indicates a sort order other than asc or desc.
	ErrInvalidSortOrder = errors.New("invalid sort order")

	// ErrInvalidID indicates an identifier that cannot be used as a storage key.
	ErrInvalidID = errors.New("invalid id")
)

// ActionError wraps action-related errors with additional context.
type ActionError struct {
	Op     string // Operation being performed (e.g., "GetByName", "Save", "Delete")
	Action string // Action ID or name
	Err    error  // Underlying error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s operation failed for action %s: %v", e.Op, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for action errors.
func (e *ActionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewActionError creates a new action error with context.
func NewActionError(op, action string, err error) *ActionError {
	return &ActionError{Op: op, Action: action, Err: err}
}

// CredentialError wraps credential-related errors with additional context.
type CredentialError struct {
	Op         string
	Credential string
	Err        error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s operation failed for credential %s: %v", e.Op, e.Credential, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

func (e *CredentialError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewCredentialError creates a new credential error with context.
func NewCredentialError(op, credential string, err error) *CredentialError {
	return &CredentialError{Op: op, Credential: credential, Err: err}
}

// IsActionNotFound checks if an error indicates an action was not found.
func IsActionNotFound(err error) bool {
	return errors.Is(err, ErrActionNotFound)
}

// IsCredentialNotFound checks if an error indicates a credential was not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsAlreadyExists checks if an error indicates a uniqueness conflict.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrActionAlreadyExists) || errors.Is(err, ErrCredentialAlreadyExists)
}

// IsInvalidSortField checks if an error indicates an invalid sort field.
func IsInvalidSortField(err error) bool {
	return errors.Is(err, ErrInvalidSortField)
}

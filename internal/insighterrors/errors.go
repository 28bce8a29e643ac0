// Package insighterrors provides sentinel and custom error types for the application.
package insighterrors

import "fmt"

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when caller input fails validation (covers ingestion errors and
// malformed query parameters).
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrConflict is the sentinel for conflict errors (e.g. duplicate feedback_id on ingest).
var ErrConflict = &ConflictError{}

// ConflictError is a sentinel error for resource conflicts.
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError with a custom message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "conflict"
}

// Is implements the error interface for error comparison.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)

	return ok
}

// ErrCapabilityUnavailable is the sentinel for capability failures that
// survived retries. Items hit by it stay unprocessed and are retried in a
// later run.
var ErrCapabilityUnavailable = &CapabilityUnavailableError{}

// CapabilityUnavailableError wraps a remote text-generation or embedding
// failure after the retry budget is exhausted.
type CapabilityUnavailableError struct {
	Capability string
	Err        error
}

// NewCapabilityUnavailableError creates a CapabilityUnavailableError wrapping err.
func NewCapabilityUnavailableError(capability string, err error) *CapabilityUnavailableError {
	return &CapabilityUnavailableError{Capability: capability, Err: err}
}

// Error implements the error interface.
func (e *CapabilityUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capability %s unavailable: %v", e.Capability, e.Err)
	}

	return "capability unavailable"
}

// Unwrap returns the wrapped capability error.
func (e *CapabilityUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *CapabilityUnavailableError) Is(target error) bool {
	_, ok := target.(*CapabilityUnavailableError)

	return ok
}

// ErrDimensionMismatch is the sentinel for embedding vectors whose length
// does not match the store's fixed dimension. Never silently reshaped.
var ErrDimensionMismatch = &DimensionMismatchError{}

// DimensionMismatchError reports a vector of the wrong length.
type DimensionMismatchError struct {
	Got  int
	Want int
}

// NewDimensionMismatchError creates a DimensionMismatchError.
func NewDimensionMismatchError(got, want int) *DimensionMismatchError {
	return &DimensionMismatchError{Got: got, Want: want}
}

// Error implements the error interface.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: got %d, want %d", e.Got, e.Want)
}

// Is implements the error interface for error comparison.
func (e *DimensionMismatchError) Is(target error) bool {
	_, ok := target.(*DimensionMismatchError)

	return ok
}

package errors

import (
	"fmt"
	"strings"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeStorage    ErrorType = "STORAGE"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

// Violation is a single schema violation inside a validation error.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// AppError is the custom error type for the application
type AppError struct {
	Type       ErrorType
	Message    string
	Violations []Violation
	Err        error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = fmt.Sprintf("%s: %s", v.Path, v.Message)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewValidationWithViolations creates a validation error carrying the
// individual schema violations that caused it.
func NewValidationWithViolations(message string, violations []Violation) error {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		Violations: violations,
	}
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewConflict creates a conflict error
func NewConflict(message string) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewStorage creates a storage-unavailable error for transient backend faults
func NewStorage(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeStorage,
		Message: message,
		Err:     err,
	}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Type:       appErr.Type,
			Message:    fmt.Sprintf("%s: %s", message, appErr.Message),
			Violations: appErr.Violations,
			Err:        appErr.Err,
		}
	}

	// Otherwise, create an internal error
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Type checking functions

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == ErrorTypeValidation
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == ErrorTypeNotFound
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == ErrorTypeConflict
}

// IsStorage checks if an error is a storage-unavailable error
func IsStorage(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == ErrorTypeStorage
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == ErrorTypeInternal
}

// ViolationsOf returns the schema violations attached to a validation error,
// or nil when the error carries none.
func ViolationsOf(err error) []Violation {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Violations
	}
	return nil
}

// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrExecution       = errors.New("execution failure")
	ErrToolUnavailable = errors.New("tool unavailable")
	ErrInternal        = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "kind", "templateName")
	Resource string // For not found/conflict (e.g., "deployment", "template")
	Op       string // Operation that failed (e.g., "registry.snapshot")
	Hint     string // Remediation hint for tool errors
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Conflict creates a conflict error for a resource.
func Conflict(resource, id, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  reason,
		Resource: resource,
	}
}

// Unauthorized creates an authentication failure.
func Unauthorized(message string) error {
	return &Error{
		Sentinel: ErrUnauthorized,
		Message:  message,
	}
}

// Forbidden creates an authorization failure for an authenticated caller.
func Forbidden(message string) error {
	return &Error{
		Sentinel: ErrForbidden,
		Message:  message,
	}
}

// ExecutionFailure reports that a step's underlying tool failed or timed out.
func ExecutionFailure(op, message string) error {
	return &Error{
		Sentinel: ErrExecution,
		Message:  fmt.Sprintf("%s: %s", op, message),
		Op:       op,
	}
}

// ToolUnavailable reports a required external tool missing from the environment.
func ToolUnavailable(tool, hint string) error {
	return &Error{
		Sentinel: ErrToolUnavailable,
		Message:  fmt.Sprintf("required tool %q not found in PATH", tool),
		Resource: tool,
		Hint:     hint,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// HintOf returns the remediation hint carried by err, if any.
func HintOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Hint
	}
	return ""
}

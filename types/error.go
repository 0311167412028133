package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the orchestration core.
type ErrorCode string

// Workflow error codes
const (
	// ErrValidation indicates a malformed workflow definition: duplicate step
	// IDs, a dependency on a nonexistent step, or a dependency cycle. Raised
	// at registration time, never during execution.
	ErrValidation ErrorCode = "VALIDATION"
	// ErrNotFound indicates an unknown workflow or execution ID.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrStepTimeout indicates a step handler did not settle within its
	// timeout. Treated identically to a handler failure for scheduling.
	ErrStepTimeout ErrorCode = "STEP_TIMEOUT"
	// ErrStepExecution wraps an error returned (or panicked) by a step handler.
	ErrStepExecution ErrorCode = "STEP_EXECUTION"
	// ErrCancelled indicates an execution was cancelled before completing.
	ErrCancelled ErrorCode = "CANCELLED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsCode reports whether err (or any error in its chain) carries the code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

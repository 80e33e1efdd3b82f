package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an error category for stable matching in tests
// and at the CLI boundary.
type ErrorCode string

const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Planning-phase errors: detected before any filesystem mutation.
	ErrSourceResolution   ErrorCode = "SOURCE_RESOLUTION"
	ErrCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"
	ErrNameConflict       ErrorCode = "NAME_CONFLICT"
	ErrFrozenMismatch     ErrorCode = "FROZEN_MISMATCH"
	ErrIntegrityMismatch  ErrorCode = "INTEGRITY_MISMATCH"
	ErrManifestParse      ErrorCode = "MANIFEST_PARSE"
	ErrPlatformUnknown    ErrorCode = "PLATFORM_UNKNOWN"

	// Execution-phase errors: trigger transaction rollback.
	ErrMergeFailure ErrorCode = "MERGE_FAILURE"
	ErrFilesystem   ErrorCode = "FILESYSTEM"

	// Workspace lock errors
	ErrLockContention ErrorCode = "LOCK_CONTENTION"
)

// AugentError is a structured error with a stable code and optional
// key/value details.
type AugentError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *AugentError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AugentError) Unwrap() error {
	return e.Wrapped
}

// Is matches two AugentErrors by code.
func (e *AugentError) Is(target error) bool {
	var targetErr *AugentError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new AugentError with the given code and message
func New(code ErrorCode, message string) *AugentError {
	return &AugentError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new AugentError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AugentError {
	return &AugentError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an AugentError
func Wrap(err error, code ErrorCode, message string) *AugentError {
	if err == nil {
		return nil
	}
	return &AugentError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AugentError {
	if err == nil {
		return nil
	}
	return &AugentError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *AugentError) WithDetail(key string, value interface{}) *AugentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var augentErr *AugentError
	if errors.As(err, &augentErr) {
		return augentErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if
// the error is not an AugentError.
func GetErrorCode(err error) ErrorCode {
	var augentErr *AugentError
	if errors.As(err, &augentErr) {
		return augentErr.Code
	}
	return ErrUnknown
}

// IsPlanning reports whether the error belongs to the planning phase,
// i.e. was detected before any filesystem mutation began.
func IsPlanning(err error) bool {
	switch GetErrorCode(err) {
	case ErrSourceResolution, ErrCircularDependency, ErrNameConflict,
		ErrFrozenMismatch, ErrIntegrityMismatch, ErrManifestParse,
		ErrPlatformUnknown:
		return true
	}
	return false
}

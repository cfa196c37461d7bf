package apperr

import "errors"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Additional context, e.g. counts
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error carrying metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the code from the first *Error in the chain.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ClassOf returns the class of the first *Error in the chain.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Code.Class()
	}
	return ClassInternal
}

func IsValidation(err error) bool { return err != nil && ClassOf(err) == ClassValidation }
func IsConflict(err error) bool   { return err != nil && ClassOf(err) == ClassConflict }
func IsNotFound(err error) bool   { return err != nil && ClassOf(err) == ClassNotFound }
func IsOutOfRange(err error) bool { return err != nil && ClassOf(err) == ClassOutOfRange }
func IsForbidden(err error) bool  { return err != nil && ClassOf(err) == ClassForbidden }

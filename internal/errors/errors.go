package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
)

// ErrorCode represents internal error codes for registry operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Caller errors: never retried
	ErrCodeConfiguration     ErrorCode = 1000
	ErrCodeNotInitialized    ErrorCode = 1001
	ErrCodeInvalidTransition ErrorCode = 1002

	// Remote errors
	ErrCodeInitialization ErrorCode = 2000
	ErrCodeRegistration   ErrorCode = 2001
	ErrCodeUnavailable    ErrorCode = 2002
	ErrCodeTimeout        ErrorCode = 2003
	ErrCodeRetryExhausted ErrorCode = 2004
)

// RegistryError represents a structured error with code and context
type RegistryError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// NewRegistryError creates a new RegistryError
func NewRegistryError(code ErrorCode, message string, cause error) *RegistryError {
	return &RegistryError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *RegistryError) WithDetail(key string, value interface{}) *RegistryError {
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func Configuration(message string, cause error) *RegistryError {
	return NewRegistryError(ErrCodeConfiguration, message, cause)
}

func NotInitialized() *RegistryError {
	return NewRegistryError(ErrCodeNotInitialized, "state store not initialized, call Initialize first", nil)
}

func InvalidTransition(from, to string) *RegistryError {
	return NewRegistryError(ErrCodeInvalidTransition, fmt.Sprintf("invalid status transition from %q to %q", from, to), nil).
		WithDetail("from", from).
		WithDetail("to", to)
}

func Initialization(message string, cause error) *RegistryError {
	return NewRegistryError(ErrCodeInitialization, message, cause)
}

func Registration(message string, cause error) *RegistryError {
	return NewRegistryError(ErrCodeRegistration, message, cause)
}

func Unavailable(message string, cause error) *RegistryError {
	return NewRegistryError(ErrCodeUnavailable, message, cause)
}

func Timeout(message string, cause error) *RegistryError {
	return NewRegistryError(ErrCodeTimeout, message, cause)
}

func RetryExhausted(attempts int, cause error) *RegistryError {
	return NewRegistryError(ErrCodeRetryExhausted, fmt.Sprintf("retries exhausted after %d attempts", attempts), cause).
		WithDetail("attempts", attempts)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var re *RegistryError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ErrCodeUnavailable
}

// HasCode reports whether err carries the given registry error code
func HasCode(err error, code ErrorCode) bool {
	var re *RegistryError
	if stderrors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsTransient reports whether err is worth retrying. Configuration and
// state-machine errors fail immediately; cancelled contexts are final.
// Network failures, deadline overruns and unclassified remote errors are
// treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}
	var re *RegistryError
	if stderrors.As(err, &re) {
		switch re.Code {
		case ErrCodeUnavailable, ErrCodeTimeout:
			return true
		default:
			return false
		}
	}
	// Unclassified errors come from the remote store driver; assume
	// transient so the retry policy gets a chance to absorb them.
	return true
}

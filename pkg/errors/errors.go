package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)

// Option lifecycle errors

var (
	// ErrInvalidOptionType indicates an option type outside call/put
	ErrInvalidOptionType = errors.New("invalid option type")

	// ErrOptionExpired indicates the operation required a live option
	ErrOptionExpired = errors.New("option has expired")

	// ErrOptionAlreadyExercised indicates the option is fully settled
	ErrOptionAlreadyExercised = errors.New("option has already been exercised")

	// ErrInvalidAmount indicates an exercise amount above the remaining notional
	ErrInvalidAmount = errors.New("invalid exercise amount")

	// ErrEarlyExerciseNotAllowed indicates a european option exercised before its window opens
	ErrEarlyExerciseNotAllowed = errors.New("early exercise not allowed")

	// ErrOptionNotExpired indicates expiry processing attempted before expiration
	ErrOptionNotExpired = errors.New("option has not expired yet")

	// ErrOptionCancelled indicates the option was cancelled by its writer
	ErrOptionCancelled = errors.New("option has been cancelled")
)

// Ledger errors

var (
	// ErrInsufficientFunds indicates an account cannot cover a transfer
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnauthorized indicates the actor may not move the source account
	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

package core

import (
	"errors"
	"fmt"
)

// Sentinels identify the specific failure; the wrapping error type identifies its kind.
var (
	// Configuration
	ErrMissingAccountConfiguration = errors.New("missing account configuration")
	ErrNoJournal                   = errors.New("no journal available")
	ErrMissingDocument             = errors.New("missing mandatory document")
	ErrInvalidRate                 = errors.New("invalid interest rate")
	ErrStorageNotConfigured        = errors.New("document storage not configured")

	// Validation
	ErrOutOfBounds     = errors.New("value out of bounds")
	ErrDuplicateName   = errors.New("duplicate name")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnbalancedEntry = errors.New("unbalanced entry")

	// State guards
	ErrStaleSchedule     = errors.New("stale repayment schedule")
	ErrOutOfOrderPayment = errors.New("out of order payment")
	ErrInvalidState      = errors.New("invalid state")
	ErrIllegalEdit       = errors.New("illegal edit")

	ErrImmutableField = errors.New("immutable field")
	ErrNotFound       = errors.New("not found")
)

// ConfigurationError reports missing or misconfigured accounts, journals,
// documents or rates. The loan is left unchanged.
type ConfigurationError struct {
	Err error
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError blocks a create or update.
type ValidationError struct {
	Err   error
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }
func (e *ValidationError) Unwrap() error { return e.Err }

// StateGuardError blocks a transition or write because of the loan's current state.
type StateGuardError struct {
	Err error
	Msg string
}

func (e *StateGuardError) Error() string { return e.Msg }
func (e *StateGuardError) Unwrap() error { return e.Err }

// ImmutableFieldError is returned when a write touches a field that is fixed after creation.
type ImmutableFieldError struct {
	Entity string
	Field  string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("%s field %q cannot be modified", e.Entity, e.Field)
}

func (e *ImmutableFieldError) Unwrap() error { return ErrImmutableField }

// NotFoundError is returned by lookups that match nothing.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.Key) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func configErr(sentinel error, format string, args ...any) error {
	return &ConfigurationError{Err: sentinel, Msg: fmt.Sprintf(format, args...)}
}

func validationErr(sentinel error, field, format string, args ...any) error {
	return &ValidationError{Err: sentinel, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func stateErr(sentinel error, format string, args ...any) error {
	return &StateGuardError{Err: sentinel, Msg: fmt.Sprintf(format, args...)}
}

func notFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// NewNotFound lets storage adapters report missing rows in the shared form.
func NewNotFound(entity, key string) error { return notFound(entity, key) }

// NewDuplicateName lets storage adapters report unique-constraint violations.
func NewDuplicateName(field, value string) error {
	return validationErr(ErrDuplicateName, field, "%s %q already exists", field, value)
}

// NewConfigurationError reports a missing integration or setting from outside the core.
func NewConfigurationError(sentinel error, format string, args ...any) error {
	return configErr(sentinel, format, args...)
}

// NewValidationError reports bad input from outside the core.
func NewValidationError(field, format string, args ...any) error {
	return validationErr(ErrInvalidInput, field, format, args...)
}

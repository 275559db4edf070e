package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the pipeline. Callers match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidationFailed  = errors.New("validation failed")
	ErrUnsupportedInput  = errors.New("unsupported input")
	ErrTransientFailure  = errors.New("transient failure")
	ErrSecurityViolation = errors.New("security violation")
	ErrIllegalTransition = errors.New("illegal status transition")

	ErrTaskNotFound    = fmt.Errorf("task %w", ErrNotFound)
	ErrParserNotFound  = fmt.Errorf("parser %w", ErrNotFound)
	ErrHandlerNotFound = fmt.Errorf("import handler %w", ErrNotFound)
	ErrMalformedFile   = fmt.Errorf("malformed file: %w", ErrValidationFailed)
)

// TransitionError describes a rejected status transition.
type TransitionError struct {
	From TaskStatus
	To   TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// IsRetryable reports whether a task-level failure may be retried.
// NotFound, ValidationFailed, UnsupportedInput and SecurityViolation are
// permanent; everything else, including unclassified errors, is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrUnsupportedInput),
		errors.Is(err, ErrSecurityViolation),
		errors.Is(err, ErrIllegalTransition):
		return false
	}
	return true
}

// Transient marks err as a transient failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransientFailure, err)
}

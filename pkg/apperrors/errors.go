// Package apperrors defines the error taxonomy shared by services and handlers.
// Every failure is scoped to a single request; nothing here is fatal to the
// process, and no partial transition is ever left behind.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an unknown instrument, unit audit, cycle or document.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a write that lost a race: the record advanced past the
	// required state between the caller's read and its write. Retryable by the
	// caller after a fresh read; never retried automatically.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports malformed or incomplete input: a missing rejection
// reason, a missing revision justification, a write to a peer auditor's
// evaluation slot, an out-of-range score.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Msg
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StateError reports a transition that is not legal from the current state.
// Precondition names the specific failing gate so the caller can render
// actionable guidance ("unresolved score conflicts", "revision limit reached").
type StateError struct {
	Precondition string
	Msg          string
}

func (e *StateError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("illegal state transition: %s (%s)", e.Msg, e.Precondition)
	}
	return "illegal state transition: " + e.Precondition
}

// Statef builds a StateError for the named precondition with a formatted message.
func Statef(precondition, format string, args ...any) error {
	return &StateError{Precondition: precondition, Msg: fmt.Sprintf(format, args...)}
}

// AsState extracts a StateError from err, if present.
func AsState(err error) (*StateError, bool) {
	var se *StateError
	ok := errors.As(err, &se)
	return se, ok
}

// Package apperr defines the error taxonomy shared by the store, the sync
// orchestrator and the balance engine. Expected conditions (offline,
// validation failure, stale base version) are sentinel errors or typed
// structs matched with errors.Is / errors.As; invariant violations are
// returned as ErrDefect-wrapped errors and must not be handled at runtime.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoConnection is returned when a network operation is attempted
	// without a usable transport and the engine is not offline-capable.
	ErrNoConnection = errors.New("no connection to server")

	// ErrConflict is returned when the server rejects a push because the
	// entity was concurrently modified or deleted. The caller must re-pull
	// and re-apply; no field-level merge is attempted.
	ErrConflict = errors.New("conflicting server-side change")

	// ErrNotFound is returned for operations on an id present in no layer.
	ErrNotFound = errors.New("entity not found")

	// ErrPushInFlight is returned when a push or discard is requested for an
	// entity that already has a server round trip in flight.
	ErrPushInFlight = errors.New("push already in flight for entity")

	// ErrReadOnly is returned when the current user's group membership does
	// not permit writes.
	ErrReadOnly = errors.New("membership does not permit writes")

	// ErrCyclicClearing is returned by the balance engine when clearing
	// share chains form a cycle. This is a data defect, not a user error.
	ErrCyclicClearing = errors.New("cyclic clearing share chain")

	// ErrDefect wraps broken internal invariants: dangling child references,
	// remapping an id that was never allocated. Callers must not recover.
	ErrDefect = errors.New("internal invariant violated")
)

// Defect wraps an invariant violation so it matches ErrDefect.
func Defect(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDefect, fmt.Sprintf(format, args...))
}

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError reports why a work-in-progress entity cannot be saved. The
// WIP copy is left untouched when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error and returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// Empty reports whether no field errors were collected.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

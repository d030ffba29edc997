package sensor

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by operations that reference an unknown alert ID.
var ErrNotFound = errors.New("not found")

// ValidationError describes a malformed measurement, rejected before
// evaluation. The API boundary maps it to a rejected request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid measurement: %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a failure from the external persistence collaborator.
// The core propagates it without retrying; retry policy belongs to the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

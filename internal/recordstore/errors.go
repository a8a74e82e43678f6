package recordstore

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested record does not exist. It is the only
// error condition callers may branch on; anything else arrives as a
// *StoreError and must be treated as opaque.
var ErrNotFound = errors.New("record not found")

// StoreError wraps any non-NotFound failure from the record store with enough
// context to identify the call that failed.
type StoreError struct {
	Op     string
	Kind   string
	ID     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record store: %s %s/%s: %v", e.Op, e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("record store: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

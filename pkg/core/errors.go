package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotFound is returned when a record the caller named does not exist
	ErrNotFound = errors.New("record not found")

	// ErrKindMismatch is returned when a key and value disagree about their
	// record kind, or an append/removal targets a record that cannot take
	// it. It always signals a programming error, never bad input data.
	ErrKindMismatch = errors.New("record kind mismatch")

	// ErrDuplicateKey is returned when one batch proposes two records for the same key
	ErrDuplicateKey = errors.New("duplicate key in batch")

	// ErrConsistency is returned when records that must exist together are
	// found one-sided. The damage is reported, never silently repaired.
	ErrConsistency = errors.New("storage consistency violation")

	// ErrUnsupported is returned by operations this backend deliberately does not implement
	ErrUnsupported = errors.New("unsupported in this backend")

	// ErrInvalidFilter is returned when a bulk delete names a criterion this backend doesn't recognize
	ErrInvalidFilter = errors.New("unsupported bulk delete filter")

	// ErrStoreClosed is returned when trying to use a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrIteratorDone is returned by Next once an iterator is exhausted or aborted
	ErrIteratorDone = errors.New("iterator exhausted")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("loom: %v", e.Err)
	}
	return fmt.Sprintf("loom: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

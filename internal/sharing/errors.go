package sharing

import (
	"errors"
	"fmt"
)

// Sentinel errors for record store reads.
var (
	// ErrRecordNotFound indicates the resource has no sharing records.
	ErrRecordNotFound = errors.New("sharing records not found")

	// ErrStoreUnavailable indicates the record store could not answer.
	// Callers must treat it as a dependency failure, not a policy deny.
	ErrStoreUnavailable = errors.New("sharing store unavailable")
)

// StoreError wraps a store read failure with the operation that failed.
type StoreError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("sharing store %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is matches any store error as ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

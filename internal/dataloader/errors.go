package dataloader

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned for keys rejected by the loader's validator.
	ErrInvalidKey = errors.New("dataloader: invalid key")

	// ErrDiscarded is returned to callers whose window was dropped before it
	// was fetched.
	ErrDiscarded = errors.New("dataloader: batch discarded")
)

// ErrNotFound indicates that the batch function did not return a value for
// the given key.
type ErrNotFound[K any] struct {
	Key K
}

func (e ErrNotFound[K]) Error() string {
	return fmt.Sprintf("not found: (%v)", e.Key)
}

func (e ErrNotFound[K]) notFound() {}

// NewErrNotFound creates a not-found error for key.
func NewErrNotFound[K any](key K) ErrNotFound[K] {
	return ErrNotFound[K]{Key: key}
}

// IsNotFound reports whether err is an ErrNotFound of any key type.
func IsNotFound(err error) bool {
	var nf interface{ notFound() }
	return errors.As(err, &nf)
}

// BatchError is delivered to every caller of a window whose batch function
// failed as a whole.
type BatchError struct {
	Loader string
	Keys   int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: batch of %d keys failed: %v", e.Loader, e.Keys, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

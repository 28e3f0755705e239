package dataloader

import "time"

// Config configures a Loader.
type Config[K comparable, V any] struct {
	// Name identifies the loader in logs, metrics and errors
	Name string

	// MaxBatch limits the number of keys passed to one batch function call, 0 = no limit
	MaxBatch int

	// Wait dispatches a window this long after its first key was registered,
	// 0 = only dispatch explicitly or when a thunk is forced
	Wait time.Duration

	// Cache overrides the default MapCache
	Cache Cache[K, V]

	// DisableCache only deduplicates keys inside a window
	DisableCache bool

	// Validate rejects keys before they are batched. Defaults to rejecting the zero value
	Validate func(key K) error

	// Missing produces the result of keys absent from the batch result. Defaults to ErrNotFound[K]
	Missing func(key K) (V, error)

	// Hooks observe every batch function call
	Hooks []Hook
}

// EmptySlice is a Missing policy for list relations: absent keys resolve to
// an empty, non-nil slice.
func EmptySlice[K comparable, E any](K) ([]E, error) {
	return []E{}, nil
}

// ZeroValue is a Missing policy for nullable relations: absent keys resolve
// to the zero value without an error.
func ZeroValue[K comparable, V any](K) (V, error) {
	var zero V
	return zero, nil
}

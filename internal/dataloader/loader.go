package dataloader

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BatchFunc fetches the values of a set of distinct keys. The order of the
// returned map is irrelevant; keys absent from it are treated as missing.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Thunk blocks until the value of one key is available. Forcing a thunk
// whose window is still open dispatches that window.
type Thunk[V any] func() (V, error)

// Loader batches and caches lookups of V by K.
type Loader[K comparable, V any] struct {
	name     string
	fetch    BatchFunc[K, V]
	cache    Cache[K, V]
	maxBatch int
	wait     time.Duration
	validate func(key K) error
	missing  func(key K) (V, error)
	hooks    []Hook

	mu      sync.Mutex
	current *batch[K, V]   // window accepting new keys
	queued  []*batch[K, V] // full windows waiting for Dispatch
}

// New creates a loader around fetch.
func New[K comparable, V any](fetch BatchFunc[K, V], cfg Config[K, V]) *Loader[K, V] {
	l := &Loader[K, V]{
		name:     cfg.Name,
		fetch:    fetch,
		cache:    cfg.Cache,
		maxBatch: cfg.MaxBatch,
		wait:     cfg.Wait,
		validate: cfg.Validate,
		missing:  cfg.Missing,
		hooks:    cfg.Hooks,
	}
	if l.name == "" {
		l.name = "loader"
	}
	if cfg.DisableCache {
		l.cache = NoCache[K, V]{}
	} else if l.cache == nil {
		l.cache = NewMapCache[K, V]()
	}
	if l.validate == nil {
		l.validate = rejectZero[K]
	}
	if l.missing == nil {
		l.missing = func(key K) (V, error) {
			var zero V
			return zero, NewErrNotFound(key)
		}
	}
	return l
}

// Name returns the configured loader name.
func (l *Loader[K, V]) Name() string { return l.name }

// Load a value by key, batching and caching will be applied automatically
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	return l.LoadThunk(ctx, key)()
}

// LoadThunk registers key in the open window and returns a function that
// blocks until its value is available. It never blocks itself.
func (l *Loader[K, V]) LoadThunk(ctx context.Context, key K) Thunk[V] {
	if err := l.validate(key); err != nil {
		return failed[V](fmt.Errorf("%w: %v: %w", ErrInvalidKey, key, err))
	}

	l.mu.Lock()
	if t, ok := l.cache.Get(key); ok {
		l.mu.Unlock()
		return t
	}

	if l.current == nil {
		l.current = newBatch[K, V](ctx)
	}
	b := l.current
	e, created := b.add(key)
	t := l.thunk(b, e)
	if created {
		l.cache.Set(key, t)
	}

	startTimer := created && l.wait > 0 && len(b.keys) == 1
	full := l.maxBatch > 0 && len(b.keys) >= l.maxBatch
	if full {
		l.current = nil
		if l.wait == 0 {
			l.queued = append(l.queued, b)
		}
	}
	l.mu.Unlock()

	if startTimer && !full {
		go l.startTimer(b)
	}
	if full && l.wait > 0 {
		go b.run(b.ctx, l)
	}
	return t
}

// LoadMany fetches many keys at once, one result and one error per key.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) ([]V, []error) {
	return l.LoadManyThunk(ctx, keys)()
}

// LoadManyThunk registers all keys and returns a function that blocks until
// every value is available.
func (l *Loader[K, V]) LoadManyThunk(ctx context.Context, keys []K) func() ([]V, []error) {
	thunks := make([]Thunk[V], len(keys))
	for i, key := range keys {
		thunks[i] = l.LoadThunk(ctx, key)
	}
	return func() ([]V, []error) {
		values := make([]V, len(keys))
		errs := make([]error, len(keys))
		for i, thunk := range thunks {
			values[i], errs[i] = thunk()
		}
		return values, errs
	}
}

// Dispatch closes the open window and fetches it together with every queued
// window. It returns once all of them are resolved. With a cancelled ctx the
// windows are discarded instead of fetched.
func (l *Loader[K, V]) Dispatch(ctx context.Context) {
	batches := l.takeAll()
	switch len(batches) {
	case 0:
		return
	case 1:
		batches[0].run(ctx, l)
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(batches))
	for _, b := range batches {
		go func() {
			defer wg.Done()
			b.run(ctx, l)
		}()
	}
	wg.Wait()
}

// Pending reports the number of keys registered but not yet dispatched.
func (l *Loader[K, V]) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	if l.current != nil {
		n += len(l.current.keys)
	}
	for _, b := range l.queued {
		n += len(b.keys)
	}
	return n
}

// Discard drops every window that has not been dispatched. Their callers
// receive ErrDiscarded and the keys are evicted from the cache.
func (l *Loader[K, V]) Discard() {
	for _, b := range l.takeAll() {
		b.discard(l, ErrDiscarded)
	}
}

// Prime stores value for key. If the key is already known, or the loader does
// not cache, no change is made and false is returned.
func (l *Loader[K, V]) Prime(key K, value V) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache.Get(key); ok {
		return false
	}
	l.cache.Set(key, func() (V, error) { return value, nil })
	_, ok := l.cache.Get(key)
	return ok
}

// Clear evicts key from the cache.
func (l *Loader[K, V]) Clear(key K) {
	l.mu.Lock()
	l.cache.Delete(key)
	l.mu.Unlock()
}

// ClearAll evicts every key from the cache.
func (l *Loader[K, V]) ClearAll() {
	l.mu.Lock()
	l.cache.Clear()
	l.mu.Unlock()
}

func (l *Loader[K, V]) takeAll() []*batch[K, V] {
	l.mu.Lock()
	defer l.mu.Unlock()
	batches := l.queued
	l.queued = nil
	if l.current != nil {
		batches = append(batches, l.current)
		l.current = nil
	}
	return batches
}

// detach removes b from the open and queued windows so that a forced thunk
// can run it without racing a later Dispatch.
func (l *Loader[K, V]) detach(b *batch[K, V]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == b {
		l.current = nil
		return
	}
	for i, q := range l.queued {
		if q == b {
			l.queued = append(l.queued[:i], l.queued[i+1:]...)
			return
		}
	}
}

func (l *Loader[K, V]) thunk(b *batch[K, V], e *entry[V]) Thunk[V] {
	return func() (V, error) {
		select {
		case <-e.done:
		default:
			l.detach(b)
			b.run(b.ctx, l)
			<-e.done
		}
		return e.value, e.err
	}
}

func (l *Loader[K, V]) startTimer(b *batch[K, V]) {
	time.Sleep(l.wait)
	l.detach(b)
	b.run(b.ctx, l)
}

func failed[V any](err error) Thunk[V] {
	return func() (V, error) {
		var zero V
		return zero, err
	}
}

func rejectZero[K comparable](key K) error {
	var zero K
	if key == zero {
		return fmt.Errorf("zero value")
	}
	return nil
}

package dataloader

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type entry[V any] struct {
	value V
	err   error
	done  chan struct{}
}

// batch is one window: the distinct keys registered between two dispatches.
type batch[K comparable, V any] struct {
	ctx     context.Context
	keys    []K
	entries map[K]*entry[V]
	once    sync.Once
}

func newBatch[K comparable, V any](ctx context.Context) *batch[K, V] {
	return &batch[K, V]{
		ctx:     ctx,
		entries: make(map[K]*entry[V]),
	}
}

// add must be called with the loader lock held.
func (b *batch[K, V]) add(key K) (*entry[V], bool) {
	if e, ok := b.entries[key]; ok {
		return e, false
	}
	e := &entry[V]{done: make(chan struct{})}
	b.entries[key] = e
	b.keys = append(b.keys, key)
	return e, true
}

// run fetches the window exactly once, however many goroutines race on it.
func (b *batch[K, V]) run(ctx context.Context, l *Loader[K, V]) {
	b.once.Do(func() {
		if err := ctx.Err(); err != nil {
			b.evict(l)
			b.resolveAll(func(K) (V, error) {
				var zero V
				return zero, fmt.Errorf("%w: %w", ErrDiscarded, err)
			})
			return
		}
		b.fetch(ctx, l)
	})
}

func (b *batch[K, V]) discard(l *Loader[K, V], err error) {
	b.once.Do(func() {
		b.evict(l)
		b.resolveAll(func(K) (V, error) {
			var zero V
			return zero, err
		})
	})
}

func (b *batch[K, V]) fetch(ctx context.Context, l *Loader[K, V]) {
	info := BatchInfo{ID: nextBatchID(), Loader: l.name, Keys: len(b.keys)}
	for _, h := range l.hooks {
		h.BeforeBatch(ctx, info)
	}

	start := time.Now()
	values, err := safeFetch(ctx, l.fetch, b.keys)
	info.Duration = time.Since(start)

	if err != nil {
		info.Err = &BatchError{Loader: l.name, Keys: len(b.keys), Err: err}
		b.resolveAll(func(K) (V, error) {
			var zero V
			return zero, info.Err
		})
	} else {
		b.resolveAll(func(key K) (V, error) {
			if v, ok := values[key]; ok {
				return v, nil
			}
			v, err := l.missing(key)
			if IsNotFound(err) {
				info.NotFound++
			}
			return v, err
		})
	}

	for _, h := range l.hooks {
		h.AfterBatch(ctx, info)
	}
}

func (b *batch[K, V]) resolveAll(result func(key K) (V, error)) {
	for _, key := range b.keys {
		e := b.entries[key]
		e.value, e.err = result(key)
		close(e.done)
	}
}

func (b *batch[K, V]) evict(l *Loader[K, V]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range b.keys {
		l.cache.Delete(key)
	}
}

func safeFetch[K comparable, V any](ctx context.Context, fetch BatchFunc[K, V], keys []K) (values map[K]V, err error) {
	defer func() {
		if r := recover(); r != nil {
			values, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fetch(ctx, keys)
}

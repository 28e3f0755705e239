package dataloader

import "sync"

// Cache stores the thunk of every key a loader has seen. Implementations must
// be safe for concurrent use.
type Cache[K comparable, V any] interface {
	Get(key K) (Thunk[V], bool)
	Set(key K, thunk Thunk[V])
	Delete(key K) bool
	Clear()
}

// MapCache is the default operation-scoped cache.
type MapCache[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]Thunk[V]
}

func NewMapCache[K comparable, V any]() *MapCache[K, V] {
	return &MapCache[K, V]{m: make(map[K]Thunk[V])}
}

func (c *MapCache[K, V]) Get(key K) (Thunk[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.m[key]
	return t, ok
}

func (c *MapCache[K, V]) Set(key K, thunk Thunk[V]) {
	c.mu.Lock()
	c.m[key] = thunk
	c.mu.Unlock()
}

func (c *MapCache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; !ok {
		return false
	}
	delete(c.m, key)
	return true
}

func (c *MapCache[K, V]) Clear() {
	c.mu.Lock()
	c.m = make(map[K]Thunk[V])
	c.mu.Unlock()
}

// Len returns the number of cached keys.
func (c *MapCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// NoCache disables caching across windows. Keys are still deduplicated
// inside a single window.
type NoCache[K comparable, V any] struct{}

func (NoCache[K, V]) Get(K) (Thunk[V], bool) { return nil, false }
func (NoCache[K, V]) Set(K, Thunk[V])        {}
func (NoCache[K, V]) Delete(K) bool          { return false }
func (NoCache[K, V]) Clear()                 {}

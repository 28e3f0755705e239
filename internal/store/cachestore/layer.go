package cachestore

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Layer is one level of a read-through cache. Get returns only the keys it
// holds; a missing key is not an error.
type Layer[K comparable, V any] interface {
	// Unique identifier for this layer used for logging and metric purposes
	Identifier() string
	Get(ctx context.Context, keys []K) (map[K]V, error)
	Set(ctx context.Context, values map[K]V) error
}

// Memory layer is an in-process cache with expiration, it should be used as
// the first line of cache
type Memory[K comparable, V any] struct {
	prefix string
	cache  *gocache.Cache
}

// NewMemory creates a memory layer. Entries expire after retention.
func NewMemory[K comparable, V any](prefix string, retention time.Duration) *Memory[K, V] {
	return &Memory[K, V]{
		prefix: prefix,
		cache:  gocache.New(retention, 2*retention),
	}
}

func (l *Memory[K, V]) Identifier() string { return "memory" }

func (l *Memory[K, V]) Get(_ context.Context, keys []K) (map[K]V, error) {
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := l.cache.Get(stringifyKey(l.prefix, k)); ok {
			out[k] = v.(V)
		}
	}
	return out, nil
}

func (l *Memory[K, V]) Set(_ context.Context, values map[K]V) error {
	for k, v := range values {
		l.cache.SetDefault(stringifyKey(l.prefix, k), v)
	}
	return nil
}

// Flush removes every entry.
func (l *Memory[K, V]) Flush() { l.cache.Flush() }

// Redis layer is a shared cache with JSON encoding and expiration
type Redis[K comparable, V any] struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedis creates a redis layer. A zero retention disables expiration.
func NewRedis[K comparable, V any](client redis.UniversalClient, prefix string, retention time.Duration) *Redis[K, V] {
	return &Redis[K, V]{client: client, prefix: prefix, retention: retention}
}

func (l *Redis[K, V]) Identifier() string { return "redis" }

func (l *Redis[K, V]) Get(ctx context.Context, keys []K) (map[K]V, error) {
	if len(keys) == 0 {
		return map[K]V{}, nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = stringifyKey(l.prefix, k)
	}
	raw, err := l.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	out := make(map[K]V, len(keys))
	for i, r := range raw {
		s, ok := r.(string)
		if !ok {
			continue
		}
		var v V
		if err := json.UnmarshalFromString(s, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", redisKeys[i], err)
		}
		out[keys[i]] = v
	}
	return out, nil
}

func (l *Redis[K, V]) Set(ctx context.Context, values map[K]V) error {
	if len(values) == 0 {
		return nil
	}
	_, err := l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %v: %w", k, err)
			}
			pipe.Set(ctx, stringifyKey(l.prefix, k), data, l.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func stringifyKey[K comparable](prefix string, key K) string {
	return fmt.Sprintf("%s%v", prefix, key)
}

package cachestore

import (
	"context"

	"github.com/rs/zerolog"
)

// Layered resolves keys through its layers in order and falls back to a
// source for the rest. Values found in a later layer, or in the source,
// prime every earlier layer.
type Layered[K comparable, V any] struct {
	name    string
	layers  []Layer[K, V]
	source  func(ctx context.Context, keys []K) (map[K]V, error)
	metrics *Metrics
	log     zerolog.Logger
}

func (c *Layered[K, V]) Get(ctx context.Context, keys []K) (map[K]V, error) {
	result := make(map[K]V, len(keys))
	pending := keys

	for i, layer := range c.layers {
		if len(pending) == 0 {
			break
		}
		found, err := layer.Get(ctx, pending)
		if err != nil {
			// a broken cache layer degrades to a miss
			c.log.Warn().Err(err).Str("cache", c.name).Str("layer", layer.Identifier()).Msg("cache layer get failed")
			c.metrics.observeError(c.name, layer.Identifier(), "get")
			continue
		}
		c.metrics.observe(c.name, layer.Identifier(), len(found), len(pending)-len(found))
		if len(found) == 0 {
			continue
		}
		for k, v := range found {
			result[k] = v
		}
		c.prime(ctx, i, found)
		pending = missing(pending, found)
	}

	if len(pending) == 0 {
		return result, nil
	}
	found, err := c.source(ctx, pending)
	if err != nil {
		return nil, err
	}
	for k, v := range found {
		result[k] = v
	}
	c.prime(ctx, len(c.layers), found)
	return result, nil
}

// prime writes values to the layers before upTo, nearest first.
func (c *Layered[K, V]) prime(ctx context.Context, upTo int, values map[K]V) {
	if len(values) == 0 {
		return
	}
	for i := upTo - 1; i >= 0; i-- {
		layer := c.layers[i]
		if err := layer.Set(ctx, values); err != nil {
			c.log.Warn().Err(err).Str("cache", c.name).Str("layer", layer.Identifier()).Msg("cache layer set failed")
			c.metrics.observeError(c.name, layer.Identifier(), "set")
		}
	}
}

func missing[K comparable, V any](keys []K, found map[K]V) []K {
	var out []K
	for _, k := range keys {
		if _, ok := found[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

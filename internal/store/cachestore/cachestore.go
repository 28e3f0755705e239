// Package cachestore decorates a cms.Store with a process-wide read-through
// cache for the page type schema, which changes rarely and is read by every
// page. It is independent of the per-operation loader cache.
package cachestore

import (
	"context"
	"time"

	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config configures the cache layers.
type Config struct {
	// Retention is the lifetime of cached entries in every layer
	Retention time.Duration

	// Redis adds a shared layer behind the memory layer when set
	Redis redis.UniversalClient

	// KeyPrefix namespaces redis keys
	KeyPrefix string

	Metrics *Metrics
	Logger  zerolog.Logger
}

// Store caches PageTypesByIDs and AttributesByPageTypeIDs; every other
// method goes straight to the wrapped store.
type Store struct {
	cms.Store
	pageTypes  *Layered[int, *cms.PageType]
	attributes *Layered[int, []*cms.Attribute]
	memory     []interface{ Flush() }
}

var _ cms.Store = (*Store)(nil)

func New(inner cms.Store, cfg Config) *Store {
	if cfg.Retention <= 0 {
		cfg.Retention = time.Minute
	}
	s := &Store{Store: inner}

	ptMem := NewMemory[int, *cms.PageType]("page_type:", cfg.Retention)
	attrMem := NewMemory[int, []*cms.Attribute]("page_type_attributes:", cfg.Retention)
	s.memory = append(s.memory, ptMem, attrMem)

	ptLayers := []Layer[int, *cms.PageType]{ptMem}
	attrLayers := []Layer[int, []*cms.Attribute]{attrMem}
	if cfg.Redis != nil {
		ptLayers = append(ptLayers, NewRedis[int, *cms.PageType](cfg.Redis, cfg.KeyPrefix+"page_type:", cfg.Retention))
		attrLayers = append(attrLayers, NewRedis[int, []*cms.Attribute](cfg.Redis, cfg.KeyPrefix+"page_type_attributes:", cfg.Retention))
	}

	s.pageTypes = &Layered[int, *cms.PageType]{
		name:    "page_types",
		layers:  ptLayers,
		source:  inner.PageTypesByIDs,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
	s.attributes = &Layered[int, []*cms.Attribute]{
		name:    "page_type_attributes",
		layers:  attrLayers,
		source:  inner.AttributesByPageTypeIDs,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
	return s
}

func (s *Store) PageTypesByIDs(ctx context.Context, ids []int) (map[int]*cms.PageType, error) {
	return s.pageTypes.Get(ctx, ids)
}

func (s *Store) AttributesByPageTypeIDs(ctx context.Context, ids []int) (map[int][]*cms.Attribute, error) {
	return s.attributes.Get(ctx, ids)
}

// FlushMemory empties the in-process layers.
func (s *Store) FlushMemory() {
	for _, m := range s.memory {
		m.Flush()
	}
}

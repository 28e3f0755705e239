// Package cmsrt is the executor runtime of the page and page type API. It
// maps every GraphQL field to an explicit resolver and turns the executor's
// per-depth batches into dispatches of the operation's cms.Loaders.
package cmsrt

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"time"

	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/hanpama/pagegraph/internal/dataloader"
	"github.com/hanpama/pagegraph/internal/executor"
	"github.com/hanpama/pagegraph/internal/schema"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed schema.graphql
var sdl string

// SDL returns the schema source served by the runtime.
func SDL() string { return sdl }

// LoadSchema builds the executable schema of the runtime.
func LoadSchema() (*schema.Schema, error) {
	return schema.BuildFromSDL("schema.graphql", sdl)
}

// syncResolver produces the value of a field straight from its parent.
type syncResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// asyncResolver registers the loads one task needs and returns the thunk
// that produces its value once the loaders have been dispatched.
type asyncResolver func(ctx context.Context, l *cms.Loaders, source any, args map[string]any) dataloader.Thunk[any]

// Runtime implements executor.Runtime over a cms.Store.
type Runtime struct {
	schema  *schema.Schema
	store   cms.Store
	loaders cms.LoaderOptions
	now     func() time.Time
	log     zerolog.Logger

	sync  map[string]syncResolver
	async map[string]asyncResolver
}

var _ executor.Runtime = (*Runtime)(nil)

type Option func(*Runtime)

// WithLoaderOptions configures the loaders created for every operation.
func WithLoaderOptions(o cms.LoaderOptions) Option { return func(r *Runtime) { r.loaders = o } }

// WithClock replaces time.Now for publication checks.
func WithClock(now func() time.Time) Option { return func(r *Runtime) { r.now = now } }

// WithLogger sets the logger used for resolver failures.
func WithLogger(l zerolog.Logger) Option { return func(r *Runtime) { r.log = l } }

// New creates a runtime for sch reading from store. Every @batch field of
// sch must have an async resolver and every other object field a sync one.
func New(sch *schema.Schema, store cms.Store, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		schema: sch,
		store:  store,
		now:    time.Now,
		log:    zerolog.Nop(),
		sync:   make(map[string]syncResolver),
		async:  make(map[string]asyncResolver),
	}
	for _, o := range opts {
		o(r)
	}
	r.register()
	if err := r.checkCoverage(); err != nil {
		return nil, err
	}
	return r, nil
}

// BeginOperation gives ctx a fresh set of loaders for one GraphQL operation.
// finish drops whatever was never dispatched and reports how many batch
// fetches ran.
func (r *Runtime) BeginOperation(ctx context.Context) (context.Context, func() int) {
	l := cms.NewLoaders(r.store, r.loaders)
	return cms.WithLoaders(ctx, l), func() int {
		l.Discard()
		return l.Batches()
	}
}

func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	resolve, ok := r.sync[objectType+"."+field]
	if !ok {
		return nil, fmt.Errorf("no resolver for %s.%s", objectType, field)
	}
	return resolve(ctx, source, args)
}

// BatchResolveAsync registers the loads of every task, dispatches all
// loaders of the operation at once and then forces the thunks in task order.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	l, ok := cms.LoadersFromContext(ctx)
	if !ok {
		var finish func() int
		ctx, finish = r.BeginOperation(ctx)
		defer finish()
		l, _ = cms.LoadersFromContext(ctx)
	}

	thunks := make([]dataloader.Thunk[any], len(tasks))
	for i, t := range tasks {
		resolve, ok := r.async[t.ObjectType+"."+t.Field]
		if !ok {
			thunks[i] = fail(fmt.Errorf("no resolver for %s.%s", t.ObjectType, t.Field))
			continue
		}
		thunks[i] = resolve(ctx, l, t.Source, t.Args)
	}

	l.Dispatch(ctx)

	results := make([]executor.AsyncResolveResult, len(tasks))
	for i, thunk := range thunks {
		v, err := thunk()
		if err != nil {
			r.log.Debug().Err(err).Str("field", tasks[i].ObjectType+"."+tasks[i].Field).Msg("resolve failed")
		}
		results[i] = executor.AsyncResolveResult{Value: v, Error: err}
	}
	return results
}

func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	var name string
	switch value.(type) {
	case *cms.Page:
		name = "Page"
	case *cms.PageType:
		name = "PageType"
	case *cms.Attribute:
		name = "Attribute"
	case *cms.AttributeValue:
		name = "AttributeValue"
	case *cms.PageTranslation:
		name = "PageTranslation"
	default:
		return "", fmt.Errorf("cannot resolve %s from %T", abstractType, value)
	}
	if t := r.schema.Types[abstractType]; t != nil && !slices.Contains(t.PossibleTypes, name) {
		return "", fmt.Errorf("%s is not a possible type of %s", name, abstractType)
	}
	return name, nil
}

func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	switch typeName {
	case "ID", "String":
		switch v := value.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case "Int":
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		}
	case "Float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
	case "DateTime":
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339), nil
		case *time.Time:
			return v.UTC().Format(time.RFC3339), nil
		}
	case "JSONString":
		if v, ok := value.(string); ok {
			if !json.Valid([]byte(v)) {
				return nil, fmt.Errorf("JSONString: invalid JSON document")
			}
			return v, nil
		}
	default:
		t := r.schema.Types[typeName]
		if t == nil || t.Kind != schema.TypeKindEnum {
			return nil, fmt.Errorf("unknown leaf type %s", typeName)
		}
		name := fmt.Sprint(value)
		for _, ev := range t.EnumValues {
			if ev.Name == name {
				return name, nil
			}
		}
		return nil, fmt.Errorf("%s: invalid value %q", typeName, name)
	}
	return nil, fmt.Errorf("%s cannot represent %T", typeName, value)
}

// checkCoverage fails when a field of the schema has no resolver of the kind
// the executor will ask for.
func (r *Runtime) checkCoverage() error {
	for _, t := range r.schema.Types {
		if t.Kind != schema.TypeKindObject || t.BuiltIn {
			continue
		}
		for _, f := range t.Fields {
			key := t.Name + "." + f.Name
			if f.Async {
				if _, ok := r.async[key]; !ok {
					return fmt.Errorf("cmsrt: no batch resolver for %s", key)
				}
			} else if _, ok := r.sync[key]; !ok {
				return fmt.Errorf("cmsrt: no resolver for %s", key)
			}
		}
	}
	return nil
}

func fail(err error) dataloader.Thunk[any] {
	return func() (any, error) { return nil, err }
}

// then maps the result of a typed loader thunk.
func then[V any](t dataloader.Thunk[V], f func(V, error) (any, error)) dataloader.Thunk[any] {
	return func() (any, error) { return f(t()) }
}

// lift forwards a typed loader thunk unchanged.
func lift[V any](t dataloader.Thunk[V]) dataloader.Thunk[any] {
	return then(t, func(v V, err error) (any, error) {
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// orNull turns a not found error into null.
func orNull[V any](v V, err error) (any, error) {
	if dataloader.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Package executortest provides a scripted executor.Runtime that records how
// the executor calls it.
package executortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/hanpama/pagegraph/internal/executor"
)

// Resolver produces the value of one field for one parent.
type Resolver func(ctx context.Context, source any, args map[string]any) (any, error)

// Value returns a Resolver that always yields v.
func Value(v any) Resolver {
	return func(context.Context, any, map[string]any) (any, error) { return v, nil }
}

// Fail returns a Resolver that always fails with err.
func Fail(err error) Resolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Key reads key from a map source, the usual shape of test data.
func Key(key string) Resolver {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		m, _ := source.(map[string]any)
		return m[key], nil
	}
}

// Runtime resolves fields through resolvers keyed "Type.field". Fields without
// one read their name from a map source. It is safe for concurrent use.
type Runtime struct {
	mu        sync.Mutex
	resolvers map[string]Resolver
	syncCalls []executor.AsyncResolveTask
	batches   [][]executor.AsyncResolveTask

	// TypeOf names the object type of an interface or union value. By default
	// it reads "__typename" from map values.
	TypeOf func(abstractType string, value any) (string, error)
	// OnBatch runs at the start of every BatchResolveAsync call.
	OnBatch func(ctx context.Context, tasks []executor.AsyncResolveTask)
}

func New(resolvers map[string]Resolver) *Runtime {
	if resolvers == nil {
		resolvers = map[string]Resolver{}
	}
	return &Runtime{resolvers: resolvers}
}

// Set installs the resolver of typeName.field.
func (r *Runtime) Set(typeName, field string, res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[typeName+"."+field] = res
}

// SyncCalls returns every ResolveSync call in order.
func (r *Runtime) SyncCalls() []executor.AsyncResolveTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]executor.AsyncResolveTask(nil), r.syncCalls...)
}

// Batches returns the tasks of every BatchResolveAsync call in order.
func (r *Runtime) Batches() [][]executor.AsyncResolveTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]executor.AsyncResolveTask(nil), r.batches...)
}

// BatchFields is Batches reduced to "Type.field" names.
func (r *Runtime) BatchFields() [][]string {
	batches := r.Batches()
	out := make([][]string, len(batches))
	for i, tasks := range batches {
		out[i] = make([]string, len(tasks))
		for j, t := range tasks {
			out[i][j] = t.ObjectType + "." + t.Field
		}
	}
	return out
}

func (r *Runtime) resolve(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	r.mu.Lock()
	res, ok := r.resolvers[objectType+"."+field]
	r.mu.Unlock()
	if !ok {
		res = Key(field)
	}
	return res(ctx, source, args)
}

func (r *Runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	r.mu.Lock()
	r.syncCalls = append(r.syncCalls, executor.AsyncResolveTask{ObjectType: objectType, Field: field, Source: source, Args: args})
	r.mu.Unlock()
	return r.resolve(ctx, objectType, field, source, args)
}

func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	r.mu.Lock()
	r.batches = append(r.batches, append([]executor.AsyncResolveTask(nil), tasks...))
	r.mu.Unlock()
	if r.OnBatch != nil {
		r.OnBatch(ctx, tasks)
	}
	results := make([]executor.AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		results[i].Value, results[i].Error = r.resolve(ctx, t.ObjectType, t.Field, t.Source, t.Args)
	}
	return results
}

func (r *Runtime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	if r.TypeOf != nil {
		return r.TypeOf(abstractType, value)
	}
	if m, ok := value.(map[string]any); ok {
		if name, ok := m["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve %s for %T", abstractType, value)
}

func (r *Runtime) SerializeLeafValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

var _ executor.Runtime = (*Runtime)(nil)

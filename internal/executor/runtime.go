package executor

import (
	"context"
)

// Runtime is what the Executor calls to produce field values.
//
// Execution is breadth-first. At every depth the Executor resolves the
// synchronous fields inline through ResolveSync and collects the asynchronous
// ones (schema.Field.Async). Once the depth has no synchronous work left it
// calls BatchResolveAsync exactly once with every collected task, completes
// the results and only then moves on. That call is the batch window of the
// operation: a runtime backed by loaders registers all keys of the depth and
// dispatches them together before returning.
//
// Rules shared by all methods:
//   - Returned errors become GraphQL errors located at the field's response
//     path. A Non-Null field turns its error into a null on the nearest
//     nullable ancestor.
//   - Implementations are shared between operations and must be safe for
//     concurrent use. Per-operation state travels in ctx.
//   - source and args must not be mutated.
//
// objectType is the parent GraphQL type name ("Query" for root fields),
// field the field name, source the parent value (nil at the root) and args
// the coerced argument values.
type Runtime interface {
	// ResolveSync resolves a field that is not async. Returning (nil, nil)
	// yields null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves every async task of one depth. It must
	// return one result per task, results[i] belonging to tasks[i]. A failure
	// of one element must not fail the others. Tasks below paths already
	// nullified by a Non-Null violation are never passed in.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType returns the object type name of a value of an interface or
	// union. The name must be a possible type of abstractType.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue turns a scalar or enum value into a JSON-safe Go
	// value. Enums serialize to their name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value (nil for root fields).
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error contains a failure specific to this element; other elements in the
	// same batch are unaffected.
	Error error
}

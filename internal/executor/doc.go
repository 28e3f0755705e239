// Package executor runs GraphQL operations breadth-first so that every
// asynchronous field of one depth is resolved by a single runtime call.
//
// # Preparation
//
// ExecuteRequest picks the operation (by name, or the only one when unnamed),
// coerces the variables against its definitions and selects the root type.
// The document is expected to be validated already; see
// language.ParseAndValidate. A variable that does not fit its type fails
// the whole request. An argument that does not fit fails only its field,
// which is then never resolved.
//
// # Depths
//
// Fields are either synchronous or asynchronous, as flagged by
// schema.Field.Async (the @batch directive in SDL). Synchronous fields are
// resolved and completed inline through Runtime.ResolveSync, so descending
// through them never adds a depth. Asynchronous fields are queued. When the
// current depth has nothing synchronous left, the queue is handed to
// Runtime.BatchResolveAsync in one call and the results are completed in
// order. Completing them may queue the next depth.
//
// For a query whose deepest chain crosses d asynchronous fields,
// BatchResolveAsync runs exactly d times. The runtime treats each call as
// the close of a batch window: loads registered by the depth's tasks are
// dispatched together.
//
// # Completion
//
// Values complete following GraphQL value completion:
//   - Non-Null: a null (or an error) is reported once and propagated to the
//     nearest nullable ancestor. Anything queued below the nullified path is
//     dropped before the next runtime call. When no ancestor is nullable the
//     result carries no data at all.
//   - List: items complete with index paths; a null item of a Non-Null item
//     type nullifies the list.
//   - Scalar and enum: Runtime.SerializeLeafValue.
//   - Interface and union: Runtime.ResolveType picks the object type, which
//     must exist in the schema.
//   - Object: fields are collected (fragments apply to the object type, its
//     interfaces and the unions it belongs to) and executed.
//
// # Errors
//
// Errors carry the response path of the field that failed, and execution
// continues around them, so results are partial rather than all-or-nothing.
// Results of one batch are independent.
//
// # Cancellation
//
// The context is checked before every batch. Once it is done, the remaining
// queued fields fail with an "execution aborted" error and no further runtime
// calls are made.
package executor

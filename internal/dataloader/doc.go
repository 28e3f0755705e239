// Package dataloader batches single-key lookups into one fetch per batch
// window and caches the results for the lifetime of one logical operation.
//
// # Windows
//
// Every call to Loader.LoadThunk registers its key in the loader's open
// window and returns a Thunk. Keys are deduplicated inside the window and,
// when caching is enabled, across every window of the loader. The window is
// closed and fetched in exactly one call to the BatchFunc when one of the
// following happens:
//
//   - Loader.Dispatch is called. This is the normal path: the GraphQL
//     executor dispatches all loaders once it has collected every async field
//     of an execution depth.
//   - A Thunk whose window is still open is forced. Standalone callers can
//     therefore use Load without ever calling Dispatch.
//   - Config.Wait elapses after the first key of the window was registered.
//
// Config.MaxBatch splits large windows; a full window is queued and fetched
// by the next Dispatch (or immediately when a wait timer is configured).
//
// # Results
//
// Results are re-associated by key, never by position. A key missing from
// the returned map resolves to ErrNotFound[K] (or to Config.Missing), a
// BatchFunc error or panic resolves every key of that window to the same
// *BatchError. Keys rejected by the validator fail with ErrInvalidKey before
// they join a window.
//
// # Scope
//
// A Loader and its Cache belong to one operation. Create a new Loader per
// request; never share one between requests.
package dataloader

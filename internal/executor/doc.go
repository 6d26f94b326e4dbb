// Package executor implements a breadth-first, batch-friendly GraphQL executor
// with explicit runtime hooks for synchronous resolution, depth-wise batching of
// asynchronous work, abstract-type resolution, and leaf coercion.
//
// # Overview
//
// The executor follows a level-by-level (BFS) execution model designed to:
//   - Expand synchronous fields (plain reads of the parent value) immediately
//     without adding batch depth.
//   - Collect asynchronous fields (store-backed resolvers) encountered at the
//     current depth and resolve them in a single call to
//     Runtime.BatchResolveAsync. That call is the batch window: every loader
//     key requested by sibling fields of one depth is known before the runtime
//     talks to the store.
//   - Complete values (lists, leafs, objects, abstract types), including
//     Non-Null null propagation.
//   - Accumulate located errors while allowing partial success.
//
// # Preparation
//
// Before execution, the executor:
//  1. Chooses the operation (by name or by uniqueness when unnamed).
//  2. Coerces variables against the operation's variable definitions. Errors
//     here stop the request before any resolver runs and the result carries
//     no data entry.
//  3. Determines the root object type. Subscriptions are not served.
//
// # Execution Model
//
// Fields are classified through schema.Field.Async:
//
//   - Synchronous fields are executed immediately via Runtime.ResolveSync.
//   - Asynchronous fields are queued and resolved in batch via
//     Runtime.BatchResolveAsync.
//
// BFS Loop (per depth)
//
//	A. Sync expansion
//	   - For each field in the current selection set, coerce argument values.
//	     A coercion failure records an ARGUMENT_COERCION_FAILED error and the
//	     field completes to null without its resolver being called.
//	   - If sync: call Runtime.ResolveSync, then completeValue immediately.
//	   - If async: write a placeholder into the response tree and queue an
//	     AsyncResolveTask.
//
//	B. Batch execution
//	   - Drop queued tasks whose placeholder is no longer reachable from the
//	     response root, then call Runtime.BatchResolveAsync once with the rest.
//	   - For each result, run completeValue and replace the placeholder. Async
//	     children found while completing are queued for the next batch.
//
//	C. Non-Null propagation
//	   - Every queued task remembers the nearest nullable position enclosing
//	     it. A Non-Null violation writes null there, which detaches every
//	     placeholder below it. A violation with no nullable ancestor nulls data.
//
// For a graph with asynchronous depth d, BatchResolveAsync is invoked exactly d
// times per query. Purely synchronous descents do not increase d.
//
// # Mutations
//
// Root mutation fields run strictly in document order. The executor drains all
// async work of one root field before resolving the next, so side effects
// never overlap. A Non-Null mutation field that fails nulls data and the
// remaining fields are not executed.
//
// # Errors and Partial Success
//
// Errors are gqlerrors.Error values located by response path and tagged with
// a code: SCHEMA_MISMATCH for unknown fields and types, ARGUMENT_COERCION_FAILED
// for bad arguments and RESOLVER_ERROR for resolver and serialization
// failures. A resolver may return its own *gqlerrors.Error to choose the code.
//
// See runtime.go for the Runtime contract.
//
// Notes
//
//   - Fragments on abstract types match when the concrete object type is the
//     type condition, implements it, or is one of its union members.
//   - Nil slices complete as empty lists; nil maps and pointers are null.
package executor

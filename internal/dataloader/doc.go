// Package dataloader coalesces key lookups issued while one level of a query
// is being resolved and serves them with a single batched call.
//
// Loaders never fetch on their own. Load only records the key and hands back
// a Future; the owning Registry closes the dispatch window once every
// resolver of the current level has run, fetches all pending keys (one call
// per loader, loaders in parallel), and the Futures then resolve. Chained
// Futures may enqueue more keys while being polled, which opens the next
// window. Results, misses and errors are cached for the life of the
// Registry, so a key reaches the store at most once.
//
// A Registry and its loaders belong to exactly one request.
package dataloader

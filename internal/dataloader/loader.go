package dataloader

import (
	"context"
	"fmt"
	"sync"
)

// BatchFunc fetches keys in one call. The result is aligned with keys; a nil
// entry means the key does not exist.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]*V, error)

type entry[V any] struct {
	done bool
	v    *V // nil with done and no err is the cached miss
	err  error
}

// Loader batches and caches lookups of one key-space.
type Loader[K comparable, V any] struct {
	name  string
	fetch BatchFunc[K, V]

	mu      sync.Mutex
	cache   map[K]*entry[V]
	pending []K
	waiting []*entry[V]
}

// NewLoader returns a loader that is not attached to a Registry. Use
// Register to have its keys dispatched automatically.
func NewLoader[K comparable, V any](name string, fetch BatchFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{name: name, fetch: fetch, cache: map[K]*entry[V]{}}
}

// Name returns the key-space name.
func (l *Loader[K, V]) Name() string { return l.name }

// Load returns the value for key. A key already cached or already pending
// is never enqueued again. A missing key resolves to nil.
func (l *Loader[K, V]) Load(key K) Future[*V] {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.cache[key]
	if !ok {
		e = &entry[V]{}
		l.cache[key] = e
		l.pending = append(l.pending, key)
		l.waiting = append(l.waiting, e)
	}
	return &loaded[K, V]{l: l, e: e}
}

// LoadMany loads keys and keeps their order.
func (l *Loader[K, V]) LoadMany(keys []K) Future[[]*V] {
	fs := make([]Future[*V], len(keys))
	for i, k := range keys {
		fs[i] = l.Load(k)
	}
	return All(fs)
}

// Prime stores v for key, replacing whatever was cached. A nil v caches a
// miss.
func (l *Loader[K, V]) Prime(key K, v *V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.cache[key]; ok && !e.done {
		// keep the pending entry so its waiters resolve with v
		e.done, e.v, e.err = true, v, nil
		return
	}
	l.cache[key] = &entry[V]{done: true, v: v}
}

// Clear drops key from the cache. Futures handed out earlier keep their
// outcome; the next Load fetches again.
func (l *Loader[K, V]) Clear(key K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, key)
}

// Pending returns the number of keys waiting for dispatch.
func (l *Loader[K, V]) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Dispatch fetches every pending key with one BatchFunc call and returns the
// number of keys sent. A failed call rejects all of them with the same error.
func (l *Loader[K, V]) Dispatch(ctx context.Context) (int, error) {
	l.mu.Lock()
	keys, waiting := l.pending, l.waiting
	l.pending, l.waiting = nil, nil
	l.mu.Unlock()

	if len(keys) == 0 {
		return 0, nil
	}

	values, err := l.fetch(ctx, keys)
	if err == nil && len(values) != len(keys) {
		err = fmt.Errorf("batch returned %d values for %d keys", len(values), len(keys))
	}
	if err != nil {
		err = &BatchError{Loader: l.name, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range waiting {
		if e.done {
			continue // primed while in flight
		}
		e.done = true
		if err != nil {
			e.err = err
			continue
		}
		e.v = values[i]
	}
	return len(keys), err
}

type loaded[K comparable, V any] struct {
	l *Loader[K, V]
	e *entry[V]
}

func (f *loaded[K, V]) poll() (*V, error, bool) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if !f.e.done {
		return nil, nil, false
	}
	return f.e.v, f.e.err, true
}

// BatchError is the error every key of a failed dispatch resolves with.
type BatchError struct {
	Loader string
	Err    error
}

func (e *BatchError) Error() string { return fmt.Sprintf("%s: %v", e.Loader, e.Err) }
func (e *BatchError) Unwrap() error { return e.Err }

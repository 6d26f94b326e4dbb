package dataloader

import (
	"context"
	"sync"
)

// FetchAllFunc returns the whole collection of a key-space.
type FetchAllFunc[V any] func(ctx context.Context) ([]*V, error)

// Bulk loads an unfiltered collection once per Registry. Every Load after the
// first, from any position in the query, shares that single fetch.
type Bulk[V any] struct {
	name  string
	fetch FetchAllFunc[V]

	mu        sync.Mutex
	requested bool
	e         *bulkEntry[V]
}

type bulkEntry[V any] struct {
	done bool
	vs   []*V
	err  error
}

func NewBulk[V any](name string, fetch FetchAllFunc[V]) *Bulk[V] {
	return &Bulk[V]{name: name, fetch: fetch}
}

func (b *Bulk[V]) Name() string { return b.name }

// Load returns the collection.
func (b *Bulk[V]) Load() Future[[]*V] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.e == nil {
		b.e = &bulkEntry[V]{}
		b.requested = true
	}
	return &bulkFuture[V]{b: b, e: b.e}
}

// Clear forgets the cached collection.
func (b *Bulk[V]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.e != nil && b.e.done {
		b.e = nil
	}
}

func (b *Bulk[V]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.requested {
		return 1
	}
	return 0
}

// Dispatch performs the fetch-all if a Load is waiting on it.
func (b *Bulk[V]) Dispatch(ctx context.Context) (int, error) {
	b.mu.Lock()
	if !b.requested {
		b.mu.Unlock()
		return 0, nil
	}
	b.requested = false
	e := b.e
	b.mu.Unlock()

	vs, err := b.fetch(ctx)
	if err != nil {
		err = &BatchError{Loader: b.name, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	e.done, e.vs, e.err = true, vs, err
	return 1, err
}

type bulkFuture[V any] struct {
	b *Bulk[V]
	e *bulkEntry[V]
}

func (f *bulkFuture[V]) poll() ([]*V, error, bool) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	if !f.e.done {
		return nil, nil, false
	}
	return f.e.vs, f.e.err, true
}

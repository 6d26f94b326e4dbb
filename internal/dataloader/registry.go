package dataloader

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Batcher is anything a Registry can dispatch.
type Batcher interface {
	Name() string
	Pending() int
	Dispatch(ctx context.Context) (int, error)
}

// DispatchInfo describes one batched fetch.
type DispatchInfo struct {
	Loader   string
	Keys     int
	Start    time.Time
	Duration time.Duration
	Err      error
}

// Observer is told about every dispatch. It may be called concurrently.
type Observer func(ctx context.Context, info DispatchInfo)

// Registry owns the loaders of one request and decides when their dispatch
// windows close.
type Registry struct {
	observers []Observer

	mu       sync.Mutex
	batchers []Batcher
	rounds   int
}

type Option func(*Registry)

// WithObserver adds fn to the dispatch observers.
func WithObserver(fn Observer) Option {
	return func(r *Registry) { r.observers = append(r.observers, fn) }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add attaches b to the registry.
func (r *Registry) Add(b Batcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchers = append(r.batchers, b)
}

// Register creates a keyed loader dispatched by r.
func Register[K comparable, V any](r *Registry, name string, fetch BatchFunc[K, V]) *Loader[K, V] {
	l := NewLoader(name, fetch)
	r.Add(l)
	return l
}

// RegisterBulk creates a fetch-all loader dispatched by r.
func RegisterBulk[V any](r *Registry, name string, fetch FetchAllFunc[V]) *Bulk[V] {
	b := NewBulk(name, fetch)
	r.Add(b)
	return b
}

// Pending reports whether any loader has keys waiting.
func (r *Registry) Pending() bool {
	for _, b := range r.snapshot() {
		if b.Pending() > 0 {
			return true
		}
	}
	return false
}

// Rounds returns how many dispatch windows have been closed.
func (r *Registry) Rounds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rounds
}

// Dispatch closes the current window: every loader with pending keys runs
// its batch, all of them in parallel. Fetch errors are delivered through the
// Futures, not returned.
func (r *Registry) Dispatch(ctx context.Context) {
	var g errgroup.Group
	dispatched := false
	for _, b := range r.snapshot() {
		if b.Pending() == 0 {
			continue
		}
		dispatched = true
		g.Go(func() error {
			start := time.Now()
			n, err := b.Dispatch(ctx)
			info := DispatchInfo{Loader: b.Name(), Keys: n, Start: start, Duration: time.Since(start), Err: err}
			for _, obs := range r.observers {
				obs(ctx, info)
			}
			return nil
		})
	}
	_ = g.Wait()
	if dispatched {
		r.mu.Lock()
		r.rounds++
		r.mu.Unlock()
	}
}

func (r *Registry) snapshot() []Batcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Batcher(nil), r.batchers...)
}

// Result is the outcome of one awaited Future.
type Result[V any] struct {
	Value V
	Err   error
}

// AwaitAll drives fs to completion: poll everything, dispatch whatever the
// polls enqueued, repeat. Loads issued by Futures of the same round share a
// dispatch.
func AwaitAll[V any](ctx context.Context, r *Registry, fs []Future[V]) []Result[V] {
	out := make([]Result[V], len(fs))
	done := make([]bool, len(fs))
	for {
		waiting := 0
		for i, f := range fs {
			if done[i] {
				continue
			}
			v, err, ok := f.poll()
			if !ok {
				waiting++
				continue
			}
			out[i], done[i] = Result[V]{Value: v, Err: err}, true
		}
		if waiting == 0 {
			return out
		}

		cause := ctx.Err()
		if cause == nil && !r.Pending() {
			cause = ErrStalled
		}
		if cause != nil {
			for i := range fs {
				if !done[i] {
					out[i] = Result[V]{Err: cause}
				}
			}
			return out
		}
		r.Dispatch(ctx)
	}
}

// Await drives a single Future to completion.
func Await[V any](ctx context.Context, r *Registry, f Future[V]) (V, error) {
	res := AwaitAll(ctx, r, []Future[V]{f})[0]
	return res.Value, res.Err
}

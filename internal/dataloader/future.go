package dataloader

import "errors"

// ErrStalled is reported for a Future that cannot make progress because no
// loader has pending keys.
var ErrStalled = errors.New("dataloader: future stalled with no pending loads")

// Future is a value that becomes available once its loads were dispatched.
type Future[V any] interface {
	// poll reports the outcome; ok is false while the Future waits on a
	// loader that has not been dispatched yet.
	poll() (v V, err error, ok bool)
}

type resolved[V any] struct {
	v   V
	err error
}

func (r resolved[V]) poll() (V, error, bool) { return r.v, r.err, true }

// Value returns a Future already holding v.
func Value[V any](v V) Future[V] { return resolved[V]{v: v} }

// Fail returns a Future already holding err.
func Fail[V any](err error) Future[V] { return resolved[V]{err: err} }

// Resolve wraps a (value, error) pair.
func Resolve[V any](v V, err error) Future[V] { return resolved[V]{v: v, err: err} }

type then[A, B any] struct {
	src  Future[A]
	fn   func(A) Future[B]
	next Future[B]
}

func (t *then[A, B]) poll() (B, error, bool) {
	if t.next == nil {
		a, err, ok := t.src.poll()
		if !ok {
			var zero B
			return zero, nil, false
		}
		if err != nil {
			var zero B
			return zero, err, true
		}
		t.next = t.fn(a)
	}
	return t.next.poll()
}

// Then continues f with fn once f succeeds. fn may issue further loads;
// they join the next dispatch window. Errors short-circuit.
func Then[A, B any](f Future[A], fn func(A) Future[B]) Future[B] {
	return &then[A, B]{src: f, fn: fn}
}

// Map transforms the value of f.
func Map[A, B any](f Future[A], fn func(A) (B, error)) Future[B] {
	return Then(f, func(a A) Future[B] { return Resolve(fn(a)) })
}

type all[V any] struct {
	fs []Future[V]
}

func (a *all[V]) poll() ([]V, error, bool) {
	out := make([]V, len(a.fs))
	done := true
	for i, f := range a.fs {
		v, err, ok := f.poll()
		if !ok {
			done = false
			continue
		}
		if err != nil {
			return nil, err, true
		}
		out[i] = v
	}
	if !done {
		return nil, nil, false
	}
	return out, nil, true
}

// All waits for every Future and keeps their order. The first error wins.
func All[V any](fs []Future[V]) Future[[]V] {
	return &all[V]{fs: fs}
}

// Erase widens a typed Future to Future[any].
func Erase[V any](f Future[V]) Future[any] {
	return Map(f, func(v V) (any, error) { return v, nil })
}

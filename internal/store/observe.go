package store

import (
	"context"
	"sync"
	"time"
)

// Call describes one adapter invocation.
type Call struct {
	Entity   string
	Op       string
	Field    string // relation field for FindMany and FindManyBy
	Keys     int    // ids or values passed in
	Duration time.Duration
	Err      error
}

// CallFunc receives every Call. It may be invoked concurrently.
type CallFunc func(ctx context.Context, c Call)

// Observe returns a Store whose repositories report each call to fn before
// returning. The backend lifecycle is shared with s.
func Observe(s *Store, fn CallFunc) *Store {
	return &Store{
		Users:         &observed[User]{inner: s.Users, entity: "user", fn: fn},
		Posts:         &observed[Post]{inner: s.Posts, entity: "post", fn: fn},
		Profiles:      &observed[Profile]{inner: s.Profiles, entity: "profile", fn: fn},
		MemberTypes:   &observed[MemberType]{inner: s.MemberTypes, entity: "memberType", fn: fn},
		Subscriptions: &observedEdges{inner: s.Subscriptions, fn: fn},
		ping:          s.Ping,
		close:         s.Close,
	}
}

type observed[T Entity] struct {
	inner  Repository[T]
	entity string
	fn     CallFunc
}

func (o *observed[T]) report(ctx context.Context, op, field string, keys int, start time.Time, err error) {
	o.fn(ctx, Call{Entity: o.entity, Op: op, Field: field, Keys: keys, Duration: time.Since(start), Err: err})
}

func (o *observed[T]) FindByID(ctx context.Context, id string) (*T, error) {
	start := time.Now()
	v, err := o.inner.FindByID(ctx, id)
	o.report(ctx, "findById", "", 1, start, err)
	return v, err
}

func (o *observed[T]) FindByIDs(ctx context.Context, ids []string) ([]*T, error) {
	start := time.Now()
	vs, err := o.inner.FindByIDs(ctx, ids)
	o.report(ctx, "findByIds", "", len(ids), start, err)
	return vs, err
}

func (o *observed[T]) FindMany(ctx context.Context, filter Filter) ([]*T, error) {
	start := time.Now()
	vs, err := o.inner.FindMany(ctx, filter)
	keys := 0
	if !filter.IsZero() {
		keys = 1
	}
	o.report(ctx, "findMany", filter.Field, keys, start, err)
	return vs, err
}

func (o *observed[T]) FindManyBy(ctx context.Context, field string, values []string) ([][]*T, error) {
	start := time.Now()
	vs, err := o.inner.FindManyBy(ctx, field, values)
	o.report(ctx, "findManyBy", field, len(values), start, err)
	return vs, err
}

func (o *observed[T]) Create(ctx context.Context, v T) (*T, error) {
	start := time.Now()
	out, err := o.inner.Create(ctx, v)
	o.report(ctx, "create", "", 1, start, err)
	return out, err
}

func (o *observed[T]) Update(ctx context.Context, id string, mutate func(*T)) (*T, error) {
	start := time.Now()
	out, err := o.inner.Update(ctx, id, mutate)
	o.report(ctx, "update", "", 1, start, err)
	return out, err
}

func (o *observed[T]) Delete(ctx context.Context, id string) (*T, error) {
	start := time.Now()
	out, err := o.inner.Delete(ctx, id)
	o.report(ctx, "delete", "", 1, start, err)
	return out, err
}

type observedEdges struct {
	inner EdgeRepository
	fn    CallFunc
}

func (o *observedEdges) report(ctx context.Context, op string, keys int, start time.Time, err error) {
	o.fn(ctx, Call{Entity: "subscription", Op: op, Keys: keys, Duration: time.Since(start), Err: err})
}

func (o *observedEdges) Add(ctx context.Context, subscriberID, authorID string) (*Subscription, error) {
	start := time.Now()
	e, err := o.inner.Add(ctx, subscriberID, authorID)
	o.report(ctx, "add", 1, start, err)
	return e, err
}

func (o *observedEdges) Remove(ctx context.Context, subscriberID, authorID string) (*Subscription, error) {
	start := time.Now()
	e, err := o.inner.Remove(ctx, subscriberID, authorID)
	o.report(ctx, "remove", 1, start, err)
	return e, err
}

func (o *observedEdges) AuthorsOf(ctx context.Context, subscriberIDs []string) ([][]string, error) {
	start := time.Now()
	out, err := o.inner.AuthorsOf(ctx, subscriberIDs)
	o.report(ctx, "authorsOf", len(subscriberIDs), start, err)
	return out, err
}

func (o *observedEdges) SubscribersOf(ctx context.Context, authorIDs []string) ([][]string, error) {
	start := time.Now()
	out, err := o.inner.SubscribersOf(ctx, authorIDs)
	o.report(ctx, "subscribersOf", len(authorIDs), start, err)
	return out, err
}

// Recorder keeps every Call it is handed. Pass Recorder.Record to Observe.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Record(_ context.Context, c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns the recorded calls in arrival order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many calls hit entity with op.
func (r *Recorder) Count(entity, op string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Entity == entity && c.Op == op {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

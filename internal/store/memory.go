package store

import (
	"context"
	"sync"
)

// NewMemory returns a Store kept in process memory, seeded with the default
// member types. Records are listed in creation order.
func NewMemory() *Store {
	s := &Store{
		Users:         newMemTable[User](),
		Posts:         newMemTable[Post](),
		Profiles:      newMemTable[Profile](),
		MemberTypes:   newMemTable[MemberType](),
		Subscriptions: &memEdges{},
	}
	// cannot fail on an empty table
	_ = SeedMemberTypes(context.Background(), s.MemberTypes)
	return s
}

type memTable[T Entity] struct {
	mu    sync.RWMutex
	rows  map[string]T
	order []string
}

func newMemTable[T Entity]() *memTable[T] {
	return &memTable[T]{rows: map[string]T{}}
}

func (m *memTable[T]) FindByID(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *memTable[T]) FindByIDs(ctx context.Context, ids []string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*T, len(ids))
	for i, id := range ids {
		if v, ok := m.rows[id]; ok {
			out[i] = &v
		}
	}
	return out, nil
}

func (m *memTable[T]) FindMany(ctx context.Context, filter Filter) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*T{}
	for _, id := range m.order {
		v := m.rows[id]
		if !filter.IsZero() {
			if attr, ok := v.Attr(filter.Field); !ok || attr != filter.Value {
				continue
			}
		}
		out = append(out, &v)
	}
	return out, nil
}

func (m *memTable[T]) FindManyBy(ctx context.Context, field string, values []string) ([][]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot := make(map[string][]int, len(values))
	for i, val := range values {
		slot[val] = append(slot[val], i)
	}
	out := make([][]*T, len(values))
	for i := range out {
		out[i] = []*T{}
	}
	for _, id := range m.order {
		v := m.rows[id]
		attr, ok := v.Attr(field)
		if !ok {
			continue
		}
		for _, i := range slot[attr] {
			out[i] = append(out[i], &v)
		}
	}
	return out, nil
}

func (m *memTable[T]) Create(ctx context.Context, v T) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := v.Key()
	if id == "" {
		return nil, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; ok {
		return nil, ErrConflict
	}
	m.rows[id] = v
	m.order = append(m.order, id)
	return &v, nil
}

func (m *memTable[T]) Update(ctx context.Context, id string, mutate func(*T)) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	mutate(&v)
	if v.Key() != id {
		return nil, ErrInvalidID
	}
	m.rows[id] = v
	return &v, nil
}

func (m *memTable[T]) Delete(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.rows, id)
	for i, have := range m.order {
		if have == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return &v, nil
}

type memEdges struct {
	mu    sync.RWMutex
	edges []Subscription
}

func (m *memEdges) Add(ctx context.Context, subscriberID, authorID string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if subscriberID == "" || authorID == "" {
		return nil, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := Subscription{SubscriberID: subscriberID, AuthorID: authorID}
	for _, have := range m.edges {
		if have == e {
			return nil, ErrConflict
		}
	}
	m.edges = append(m.edges, e)
	return &e, nil
}

func (m *memEdges) Remove(ctx context.Context, subscriberID, authorID string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := Subscription{SubscriberID: subscriberID, AuthorID: authorID}
	for i, have := range m.edges {
		if have == e {
			m.edges = append(m.edges[:i], m.edges[i+1:]...)
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memEdges) AuthorsOf(ctx context.Context, subscriberIDs []string) ([][]string, error) {
	return m.collect(ctx, subscriberIDs, func(e Subscription) (string, string) { return e.SubscriberID, e.AuthorID })
}

func (m *memEdges) SubscribersOf(ctx context.Context, authorIDs []string) ([][]string, error) {
	return m.collect(ctx, authorIDs, func(e Subscription) (string, string) { return e.AuthorID, e.SubscriberID })
}

func (m *memEdges) collect(ctx context.Context, ids []string, side func(Subscription) (from, to string)) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot := make(map[string][]int, len(ids))
	for i, id := range ids {
		slot[id] = append(slot[id], i)
	}
	out := make([][]string, len(ids))
	for i := range out {
		out[i] = []string{}
	}
	for _, e := range m.edges {
		from, to := side(e)
		for _, i := range slot[from] {
			out[i] = append(out[i], to)
		}
	}
	return out, nil
}

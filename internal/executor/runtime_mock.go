package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	schema "github.com/hanpama/membergraph/internal/schema"
)

// MockResolver resolves one field of one source. MockRuntime uses it for
// both sync and batched fields.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// Call kinds recorded by MockRuntime.
const (
	CallKindSync  = "sync"
	CallKindAsync = "async"
)

// NewMockValueResolver returns a MockResolver that always returns val.
func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

// NewMockErrorResolver returns a MockResolver that always fails with err.
func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Call records one field resolution. Async calls of the same
// BatchResolveAsync invocation share a BatchID, counted from 1; sync calls
// have BatchID 0.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int
}

// MockRuntime is a Runtime for tests. Resolvers are keyed "Type.field"; a
// field without one resolves to null. Within a batch, tasks are resolved
// and logged grouped by coordinate, in order of first appearance, the way a
// loader-backed runtime would dispatch them.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	calls     []Call
	batches   int

	typeResolver func(value any) (string, error)
	serializer   func(val any, t schema.TypeRef) (any, error)
	parser       func(val any, t schema.TypeRef) (any, error)
}

var _ Runtime = (*MockRuntime)(nil)

// NewMockRuntime creates a MockRuntime with resolvers. Abstract types are
// resolved from a "__typename" entry of map sources.
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{
		resolvers: make(map[string]MockResolver, len(resolvers)),
		typeResolver: func(value any) (string, error) {
			if obj, ok := value.(map[string]any); ok {
				if name, ok := obj["__typename"].(string); ok {
					return name, nil
				}
			}
			return "", fmt.Errorf("cannot resolve type of %T", value)
		},
	}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetResolver registers or replaces the resolver for objectType.field.
func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

// SetTypeResolver replaces the abstract type resolution of a MockRuntime.
func SetTypeResolver(r Runtime, f func(value any) (string, error)) {
	withMock(r, func(m *MockRuntime) { m.typeResolver = f })
}

// SetSerializer installs the output conversion for leaf values.
func SetSerializer(r Runtime, f func(val any, t schema.TypeRef) (any, error)) {
	withMock(r, func(m *MockRuntime) { m.serializer = f })
}

// SetParser installs the input conversion used for custom scalars and enums.
func SetParser(r Runtime, f func(val any, t schema.TypeRef) (any, error)) {
	withMock(r, func(m *MockRuntime) { m.parser = f })
}

func withMock(r Runtime, set func(*MockRuntime)) {
	if m, ok := r.(*MockRuntime); ok {
		m.mu.Lock()
		set(m)
		m.mu.Unlock()
	}
}

func (m *MockRuntime) resolve(ctx context.Context, kind string, batch int, t AsyncResolveTask) AsyncResolveResult {
	m.mu.Lock()
	r := m.resolvers[t.ObjectType+"."+t.Field]
	m.calls = append(m.calls, Call{
		Kind:       kind,
		ObjectType: t.ObjectType,
		Field:      t.Field,
		Source:     t.Source,
		Args:       t.Args,
		BatchID:    batch,
	})
	m.mu.Unlock()

	if r == nil {
		return AsyncResolveResult{}
	}
	v, err := r(ctx, t.Source, t.Args)
	return AsyncResolveResult{Value: v, Error: err}
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	res := m.resolve(ctx, CallKindSync, 0, AsyncResolveTask{ObjectType: objectType, Field: field, Source: source, Args: args})
	return res.Value, res.Error
}

func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	if len(tasks) == 0 {
		return nil
	}
	m.mu.Lock()
	m.batches++
	batch := m.batches
	m.mu.Unlock()

	var order []string
	groups := map[string][]int{}
	for i, t := range tasks {
		key := t.ObjectType + "." + t.Field
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	results := make([]AsyncResolveResult, len(tasks))
	for _, key := range order {
		for _, i := range groups[key] {
			results[i] = m.resolve(ctx, CallKindAsync, batch, tasks[i])
		}
	}
	return results
}

func (m *MockRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	m.mu.Lock()
	f := m.typeResolver
	m.mu.Unlock()
	if f == nil {
		return "", fmt.Errorf("type resolver not configured")
	}
	return f(value)
}

func (m *MockRuntime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	m.mu.Lock()
	f := m.serializer
	m.mu.Unlock()
	if f == nil {
		return value, nil
	}
	return f(value, *schema.NamedType(scalarOrEnumTypeName))
}

func (m *MockRuntime) ParseLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	m.mu.Lock()
	f := m.parser
	m.mu.Unlock()
	if f == nil {
		return value, nil
	}
	return f(value, *schema.NamedType(scalarOrEnumTypeName))
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Batches reports how many non-empty BatchResolveAsync calls were made.
func (m *MockRuntime) Batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

// Reset clears recorded calls and the batch counter. Resolvers remain.
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.batches = 0
}

// Calls renders the log compactly as "kind Type.field", batch number
// appended for async calls. Handy in failure messages.
func (m *MockRuntime) Calls() string {
	var b strings.Builder
	for _, c := range m.GetCalls() {
		if c.Kind == CallKindAsync {
			fmt.Fprintf(&b, "async#%d %s.%s\n", c.BatchID, c.ObjectType, c.Field)
			continue
		}
		fmt.Fprintf(&b, "sync %s.%s\n", c.ObjectType, c.Field)
	}
	return b.String()
}

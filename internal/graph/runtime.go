package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/executor"
	"github.com/hanpama/membergraph/internal/schema"
	"github.com/hanpama/membergraph/internal/store"
)

// Runtime implements executor.Runtime for one request.
//   - Sync fields are plain reads of the parent record and never touch the
//     store.
//   - Async fields go through the request's loaders. One BatchResolveAsync
//     call is one dispatch window: every resolver of the batch runs first,
//     then the registry fetches whatever they enqueued.
//   - Mutations write through the store directly and keep the loader cache
//     coherent with what they wrote.
type Runtime struct {
	registry *dataloader.Registry
	loaders  *Loaders
	store    *store.Store
}

var _ executor.Runtime = (*Runtime)(nil)

// Loaders exposes the request's key-spaces.
func (r *Runtime) Loaders() *Loaders { return r.loaders }

// Rounds reports how many dispatch rounds the request has run.
func (r *Runtime) Rounds() int { return r.registry.Rounds() }

func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	read, ok := properties[schema.Coordinate(objectType+"."+field)]
	if !ok {
		return nil, fmt.Errorf("no property %s.%s", objectType, field)
	}
	return read(source)
}

func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	futures := make([]dataloader.Future[any], len(tasks))
	for i, t := range tasks {
		resolve, ok := resolvers[schema.Coordinate(t.ObjectType+"."+t.Field)]
		if !ok {
			futures[i] = dataloader.Fail[any](fmt.Errorf("no resolver bound for %s.%s", t.ObjectType, t.Field))
			continue
		}
		futures[i] = resolve(ctx, r, t.Source, t.Args)
	}
	for i, res := range dataloader.AwaitAll(ctx, r.registry, futures) {
		results[i] = executor.AsyncResolveResult{Value: res.Value, Error: res.Err}
	}
	return results
}

// ResolveType is never reached: the member schema has no abstract types.
func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return "", fmt.Errorf("cannot resolve %T as %s: no abstract types are declared", value, abstractType)
}

func (r *Runtime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	switch scalarOrEnumTypeName {
	case "Int":
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		}
	case "Float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		}
	case "String", "ID", "MemberTypeId":
		if v, ok := value.(string); ok {
			return v, nil
		}
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
	case "UUID":
		switch v := value.(type) {
		case string:
			return v, nil
		case uuid.UUID:
			return v.String(), nil
		}
	default:
		return nil, fmt.Errorf("unknown leaf type %s", scalarOrEnumTypeName)
	}
	return nil, fmt.Errorf("cannot serialize %v (%T) as %s", value, value, scalarOrEnumTypeName)
}

// ParseLeafValue accepts UUIDs in any form uuid.Parse understands and hands
// resolvers the canonical lower-case string.
func (r *Runtime) ParseLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	switch scalarOrEnumTypeName {
	case "UUID":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("UUID must be a string, got %T", value)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID %q: %w", s, err)
		}
		return id.String(), nil
	case "MemberTypeId":
		return value, nil
	}
	return nil, fmt.Errorf("unknown input type %s", scalarOrEnumTypeName)
}

// property reads one field off a record of type *T.
func property[T any](read func(*T) any) func(any) (any, error) {
	return func(source any) (any, error) {
		v, ok := source.(*T)
		if !ok || v == nil {
			return nil, fmt.Errorf("source is %T, want %T", source, (*T)(nil))
		}
		return read(v), nil
	}
}

var properties = map[schema.Coordinate]func(source any) (any, error){
	"MemberType.id":                 property(func(m *store.MemberType) any { return m.ID }),
	"MemberType.discount":           property(func(m *store.MemberType) any { return m.Discount }),
	"MemberType.postsLimitPerMonth": property(func(m *store.MemberType) any { return m.PostsLimitPerMonth }),

	"Post.id":      property(func(p *store.Post) any { return p.ID }),
	"Post.title":   property(func(p *store.Post) any { return p.Title }),
	"Post.content": property(func(p *store.Post) any { return p.Content }),

	"Profile.id":          property(func(p *store.Profile) any { return p.ID }),
	"Profile.isMale":      property(func(p *store.Profile) any { return p.IsMale }),
	"Profile.yearOfBirth": property(func(p *store.Profile) any { return p.YearOfBirth }),

	"User.id":      property(func(u *store.User) any { return u.ID }),
	"User.name":    property(func(u *store.User) any { return u.Name }),
	"User.balance": property(func(u *store.User) any { return u.Balance }),
}

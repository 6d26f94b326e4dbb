package reqid

import (
	"context"

	"github.com/google/uuid"
)

// Header carries a caller-chosen request ID.
const Header = "X-Request-Id"

// key is the context key for the request ID.
type key struct{}

// request pairs the visible ID with a key the server always generates
// itself. Callers may reuse an ID across requests; the key stays unique.
type request struct {
	id  string
	key string
}

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, key{}, request{id: id, key: id}), id
}

// WithID stores id in parent, or a new one when id is empty.
func WithID(parent context.Context, id string) (context.Context, string) {
	if id == "" {
		return NewContext(parent)
	}
	return context.WithValue(parent, key{}, request{id: id, key: uuid.NewString()}), id
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (string, bool) {
	r, ok := ctx.Value(key{}).(request)
	return r.id, ok
}

// Key returns the server-generated key of the request in ctx. Unlike the ID
// it is never taken from the caller, so it is safe to index per-request
// state by it.
func Key(ctx context.Context) (string, bool) {
	r, ok := ctx.Value(key{}).(request)
	return r.key, ok
}

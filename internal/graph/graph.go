// Package graph binds the member schema to a store. A Service is built once
// per process; every request gets its own Runtime, which owns the loaders
// and therefore the request's cache.
package graph

import (
	"context"
	_ "embed"
	"sort"

	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/executor"
	"github.com/hanpama/membergraph/internal/language"
	"github.com/hanpama/membergraph/internal/schema"
	"github.com/hanpama/membergraph/internal/store"
)

//go:embed schema.graphql
var sdl string

// SDL returns the schema source the Service is built from.
func SDL() string { return sdl }

// Service serves the member graph over one store.
type Service struct {
	schema    *schema.Schema
	store     *store.Store
	observers []dataloader.Observer
}

type Option func(*Service)

// WithDispatchObserver reports every loader dispatch of every request to fn.
func WithDispatchObserver(fn dataloader.Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, fn) }
}

// New builds the schema and checks that every resolver names a declared
// field.
func New(st *store.Store, opts ...Option) (*Service, error) {
	sch, err := schema.Build([]*language.Source{{Name: "schema.graphql", Input: sdl}}, Coordinates())
	if err != nil {
		return nil, err
	}
	s := &Service{schema: sch, store: st}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Schema() *schema.Schema { return s.schema }

// NewRuntime returns a Runtime with a fresh loader set. It must not be
// shared between requests.
func (s *Service) NewRuntime() *Runtime {
	opts := make([]dataloader.Option, 0, len(s.observers))
	for _, fn := range s.observers {
		opts = append(opts, dataloader.WithObserver(fn))
	}
	reg := dataloader.NewRegistry(opts...)
	return &Runtime{
		registry: reg,
		loaders:  NewLoaders(reg, s.store),
		store:    s.store,
	}
}

// Execute runs one operation against a fresh Runtime.
func (s *Service) Execute(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any) *executor.ExecutionResult {
	return executor.NewExecutor(s.NewRuntime(), s.schema).ExecuteRequest(ctx, doc, operationName, variables, nil)
}

// Coordinates lists the fields produced by resolvers, sorted.
func Coordinates() []schema.Coordinate {
	out := make([]schema.Coordinate, 0, len(resolvers))
	for c := range resolvers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

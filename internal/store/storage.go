package store

import (
	"context"
	"errors"
	"fmt"
)

// Common sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when creating a record whose key is taken.
	ErrConflict = errors.New("record already exists")

	// ErrInvalidID is returned for empty keys and for updates that change the key.
	ErrInvalidID = errors.New("invalid record id")

	// ErrStorageUnavailable is returned when the backend cannot be reached.
	ErrStorageUnavailable = errors.New("storage backend unavailable")
)

// Filter selects records whose relation Field equals Value. The zero Filter
// selects everything.
type Filter struct {
	Field string
	Value string
}

// Where is shorthand for Filter{Field: field, Value: value}.
func Where(field, value string) Filter { return Filter{Field: field, Value: value} }

func (f Filter) IsZero() bool { return f.Field == "" }

// Repository is the CRUD surface of one entity. Implementations must be safe
// for concurrent use and return copies; callers may keep what they get.
type Repository[T Entity] interface {
	// FindByID returns ErrNotFound if id does not exist.
	FindByID(ctx context.Context, id string) (*T, error)

	// FindByIDs is aligned with ids; a missing record is a nil entry.
	FindByIDs(ctx context.Context, ids []string) ([]*T, error)

	// FindMany returns matching records in creation order.
	FindMany(ctx context.Context, filter Filter) ([]*T, error)

	// FindManyBy groups records by field; the result is aligned with values.
	FindManyBy(ctx context.Context, field string, values []string) ([][]*T, error)

	// Create returns ErrConflict if the key is taken.
	Create(ctx context.Context, v T) (*T, error)

	// Update applies mutate to a copy of the stored record and saves it.
	// Returns ErrNotFound if id does not exist.
	Update(ctx context.Context, id string, mutate func(*T)) (*T, error)

	// Delete returns the removed record or ErrNotFound.
	Delete(ctx context.Context, id string) (*T, error)
}

// EdgeRepository stores the subscription edges between users.
type EdgeRepository interface {
	// Add returns ErrConflict if the edge exists.
	Add(ctx context.Context, subscriberID, authorID string) (*Subscription, error)

	// Remove returns ErrNotFound if the edge does not exist.
	Remove(ctx context.Context, subscriberID, authorID string) (*Subscription, error)

	// AuthorsOf returns, aligned with subscriberIDs, whom each one follows.
	AuthorsOf(ctx context.Context, subscriberIDs []string) ([][]string, error)

	// SubscribersOf returns, aligned with authorIDs, who follows each one.
	SubscribersOf(ctx context.Context, authorIDs []string) ([][]string, error)
}

// Store bundles one repository per entity with the backend lifecycle.
type Store struct {
	Users         Repository[User]
	Posts         Repository[Post]
	Profiles      Repository[Profile]
	MemberTypes   Repository[MemberType]
	Subscriptions EdgeRepository

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks if the backend is available.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	if err := s.ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases backend resources. The store must not be used afterwards.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// SeedMemberTypes creates the default tiers that are missing.
func SeedMemberTypes(ctx context.Context, repo Repository[MemberType]) error {
	for _, mt := range DefaultMemberTypes() {
		if _, err := repo.Create(ctx, mt); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("seed member type %s: %w", mt.ID, err)
		}
	}
	return nil
}

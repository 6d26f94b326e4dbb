package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends runs fn once per adapter so both honour the same contract.
func backends(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := DefaultRedisConfig()
		cfg.Addr = mr.Addr()
		cfg.MaxRetries = 1
		s := NewRedis(cfg)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, SeedMemberTypes(context.Background(), s.MemberTypes))
		fn(t, s)
	})
}

func seedUsers(t *testing.T, s *Store, users ...User) {
	t.Helper()
	for _, u := range users {
		_, err := s.Users.Create(context.Background(), u)
		require.NoError(t, err)
	}
}

func names(users []*User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u == nil {
			out = append(out, "<nil>")
			continue
		}
		out = append(out, u.Name)
	}
	return out
}

func TestRepositoryCRUD(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		created, err := s.Users.Create(ctx, User{ID: "U1", Name: "Alice", Balance: 10})
		require.NoError(t, err)
		assert.Equal(t, "Alice", created.Name)

		_, err = s.Users.Create(ctx, User{ID: "U1", Name: "Again"})
		assert.ErrorIs(t, err, ErrConflict)

		_, err = s.Users.Create(ctx, User{Name: "Anonymous"})
		assert.ErrorIs(t, err, ErrInvalidID)

		got, err := s.Users.FindByID(ctx, "U1")
		require.NoError(t, err)
		if diff := cmp.Diff(created, got); diff != "" {
			t.Errorf("FindByID mismatch (-want +got):\n%s", diff)
		}

		updated, err := s.Users.Update(ctx, "U1", func(u *User) { u.Balance = 42 })
		require.NoError(t, err)
		assert.Equal(t, 42.0, updated.Balance)
		assert.Equal(t, "Alice", updated.Name)

		_, err = s.Users.Update(ctx, "U1", func(u *User) { u.ID = "U9" })
		assert.ErrorIs(t, err, ErrInvalidID)

		_, err = s.Users.Update(ctx, "missing", func(*User) {})
		assert.ErrorIs(t, err, ErrNotFound)

		deleted, err := s.Users.Delete(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, 42.0, deleted.Balance)

		_, err = s.Users.FindByID(ctx, "U1")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Users.Delete(ctx, "U1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFindByIDsIsPositional(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		seedUsers(t, s, User{ID: "U1", Name: "Alice"}, User{ID: "U2", Name: "Bob"})

		got, err := s.Users.FindByIDs(context.Background(), []string{"U2", "nope", "U1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Bob", "<nil>", "Alice"}, names(got))

		got, err = s.Users.FindByIDs(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFindManyKeepsCreationOrder(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		seedUsers(t, s, User{ID: "U3", Name: "Carol"}, User{ID: "U1", Name: "Alice"}, User{ID: "U2", Name: "Bob"})

		all, err := s.Users.FindMany(context.Background(), Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Carol", "Alice", "Bob"}, names(all))

		_, err = s.Users.Delete(context.Background(), "U1")
		require.NoError(t, err)
		all, err = s.Users.FindMany(context.Background(), Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Carol", "Bob"}, names(all))
	})
}

func TestRelationLookups(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		for _, p := range []Post{
			{ID: "P1", Title: "A", AuthorID: "U1"},
			{ID: "P2", Title: "X", AuthorID: "U2"},
			{ID: "P3", Title: "B", AuthorID: "U1"},
		} {
			_, err := s.Posts.Create(ctx, p)
			require.NoError(t, err)
		}

		byAuthor, err := s.Posts.FindMany(ctx, Where(FieldAuthorID, "U1"))
		require.NoError(t, err)
		assert.Len(t, byAuthor, 2)
		assert.Equal(t, "A", byAuthor[0].Title)
		assert.Equal(t, "B", byAuthor[1].Title)

		grouped, err := s.Posts.FindManyBy(ctx, FieldAuthorID, []string{"U2", "U3", "U1"})
		require.NoError(t, err)
		require.Len(t, grouped, 3)
		assert.Len(t, grouped[0], 1)
		assert.Empty(t, grouped[1])
		assert.NotNil(t, grouped[1])
		assert.Len(t, grouped[2], 2)

		// moving a post re-indexes it
		_, err = s.Posts.Update(ctx, "P2", func(p *Post) { p.AuthorID = "U3" })
		require.NoError(t, err)
		grouped, err = s.Posts.FindManyBy(ctx, FieldAuthorID, []string{"U2", "U3"})
		require.NoError(t, err)
		assert.Empty(t, grouped[0])
		require.Len(t, grouped[1], 1)
		assert.Equal(t, "P2", grouped[1][0].ID)

		_, err = s.Posts.Delete(ctx, "P1")
		require.NoError(t, err)
		byAuthor, err = s.Posts.FindMany(ctx, Where(FieldAuthorID, "U1"))
		require.NoError(t, err)
		require.Len(t, byAuthor, 1)
		assert.Equal(t, "P3", byAuthor[0].ID)
	})
}

func TestProfilesByUser(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		_, err := s.Profiles.Create(ctx, Profile{ID: "PR1", UserID: "U1", MemberTypeID: MemberTypeBusiness, YearOfBirth: 1990})
		require.NoError(t, err)

		grouped, err := s.Profiles.FindManyBy(ctx, FieldUserID, []string{"U1", "U2"})
		require.NoError(t, err)
		require.Len(t, grouped[0], 1)
		assert.Equal(t, 1990, grouped[0][0].YearOfBirth)
		assert.Empty(t, grouped[1])

		business, err := s.Profiles.FindMany(ctx, Where(FieldMemberTypeID, MemberTypeBusiness))
		require.NoError(t, err)
		assert.Len(t, business, 1)
	})
}

func TestSeededMemberTypes(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		all, err := s.MemberTypes.FindMany(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, MemberTypeBasic, all[0].ID)
		assert.Equal(t, MemberTypeBusiness, all[1].ID)

		// seeding twice is harmless
		require.NoError(t, SeedMemberTypes(ctx, s.MemberTypes))
		all, err = s.MemberTypes.FindMany(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestSubscriptionEdges(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		edges := s.Subscriptions

		_, err := edges.Add(ctx, "U1", "U2")
		require.NoError(t, err)
		_, err = edges.Add(ctx, "U1", "U3")
		require.NoError(t, err)
		_, err = edges.Add(ctx, "U3", "U2")
		require.NoError(t, err)

		_, err = edges.Add(ctx, "U1", "U2")
		assert.ErrorIs(t, err, ErrConflict)

		authors, err := edges.AuthorsOf(ctx, []string{"U1", "U2", "U3"})
		require.NoError(t, err)
		if diff := cmp.Diff([][]string{{"U2", "U3"}, {}, {"U2"}}, authors); diff != "" {
			t.Errorf("AuthorsOf mismatch (-want +got):\n%s", diff)
		}

		subscribers, err := edges.SubscribersOf(ctx, []string{"U2"})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"U1", "U3"}}, subscribers)

		removed, err := edges.Remove(ctx, "U1", "U2")
		require.NoError(t, err)
		assert.Equal(t, &Subscription{SubscriberID: "U1", AuthorID: "U2"}, removed)
		_, err = edges.Remove(ctx, "U1", "U2")
		assert.ErrorIs(t, err, ErrNotFound)

		subscribers, err = edges.SubscribersOf(ctx, []string{"U2"})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"U3"}}, subscribers)
	})
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Users.FindByIDs(ctx, []string{"U1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), "test")
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	mr.Close()

	err := s.Ping(context.Background())
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = s.Users.FindByIDs(context.Background(), []string{"U1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestRedisKeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "mg")
	defer s.Close()

	_, err := s.Posts.Create(context.Background(), Post{ID: "P1", Title: "A", AuthorID: "U1"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("mg:post:P1"))
	members, err := mr.ZMembers("mg:post:idx:authorId:U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, members)

	raw, err := mr.Get("mg:post:P1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"P1","title":"A","content":"","authorId":"U1"}`, raw)
}

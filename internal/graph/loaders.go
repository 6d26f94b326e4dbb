package graph

import (
	"context"

	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/store"
)

// Loader names, as reported in dispatch events.
const (
	LoaderUserByID              = "user-by-id"
	LoaderPostByID              = "post-by-id"
	LoaderProfileByID           = "profile-by-id"
	LoaderProfileByUserID       = "profile-by-user-id"
	LoaderMemberTypeByID        = "member-type-by-id"
	LoaderPostsByAuthorID       = "posts-by-author-id"
	LoaderAuthorsBySubscriberID = "authors-by-subscriber-id"
	LoaderSubscribersByAuthorID = "subscribers-by-author-id"
	LoaderAllUsers              = "all-users"
	LoaderAllPosts              = "all-posts"
	LoaderAllProfiles           = "all-profiles"
	LoaderAllMemberTypes        = "all-member-types"
)

// Loaders is the key-space set of one request.
type Loaders struct {
	UserByID            *dataloader.Loader[string, store.User]
	PostByID            *dataloader.Loader[string, store.Post]
	ProfileByID         *dataloader.Loader[string, store.Profile]
	ProfileByUserID     *dataloader.Loader[string, store.Profile]
	MemberTypeByID      *dataloader.Loader[string, store.MemberType]
	PostsByAuthorID     *dataloader.Loader[string, []*store.Post]
	AuthorsBySubscriber *dataloader.Loader[string, []string]
	SubscribersByAuthor *dataloader.Loader[string, []string]
	AllUsers            *dataloader.Bulk[store.User]
	AllPosts            *dataloader.Bulk[store.Post]
	AllProfiles         *dataloader.Bulk[store.Profile]
	AllMemberTypes      *dataloader.Bulk[store.MemberType]
}

// NewLoaders registers every key-space of st with reg.
func NewLoaders(reg *dataloader.Registry, st *store.Store) *Loaders {
	return &Loaders{
		UserByID:       dataloader.Register(reg, LoaderUserByID, st.Users.FindByIDs),
		PostByID:       dataloader.Register(reg, LoaderPostByID, st.Posts.FindByIDs),
		ProfileByID:    dataloader.Register(reg, LoaderProfileByID, st.Profiles.FindByIDs),
		MemberTypeByID: dataloader.Register(reg, LoaderMemberTypeByID, st.MemberTypes.FindByIDs),
		ProfileByUserID: dataloader.Register(reg, LoaderProfileByUserID, func(ctx context.Context, userIDs []string) ([]*store.Profile, error) {
			groups, err := st.Profiles.FindManyBy(ctx, store.FieldUserID, userIDs)
			if err != nil {
				return nil, err
			}
			out := make([]*store.Profile, len(groups))
			for i, g := range groups {
				if len(g) > 0 {
					out[i] = g[0]
				}
			}
			return out, nil
		}),
		PostsByAuthorID: dataloader.Register(reg, LoaderPostsByAuthorID, func(ctx context.Context, authorIDs []string) ([]*[]*store.Post, error) {
			groups, err := st.Posts.FindManyBy(ctx, store.FieldAuthorID, authorIDs)
			if err != nil {
				return nil, err
			}
			return groupPointers(groups), nil
		}),
		AuthorsBySubscriber: dataloader.Register(reg, LoaderAuthorsBySubscriberID, func(ctx context.Context, ids []string) ([]*[]string, error) {
			groups, err := st.Subscriptions.AuthorsOf(ctx, ids)
			if err != nil {
				return nil, err
			}
			return groupPointers(groups), nil
		}),
		SubscribersByAuthor: dataloader.Register(reg, LoaderSubscribersByAuthorID, func(ctx context.Context, ids []string) ([]*[]string, error) {
			groups, err := st.Subscriptions.SubscribersOf(ctx, ids)
			if err != nil {
				return nil, err
			}
			return groupPointers(groups), nil
		}),
		AllUsers:       dataloader.RegisterBulk(reg, LoaderAllUsers, findAll(st.Users)),
		AllPosts:       dataloader.RegisterBulk(reg, LoaderAllPosts, findAll(st.Posts)),
		AllProfiles:    dataloader.RegisterBulk(reg, LoaderAllProfiles, findAll(st.Profiles)),
		AllMemberTypes: dataloader.RegisterBulk(reg, LoaderAllMemberTypes, findAll(st.MemberTypes)),
	}
}

func findAll[T store.Entity](repo store.Repository[T]) dataloader.FetchAllFunc[T] {
	return func(ctx context.Context) ([]*T, error) {
		return repo.FindMany(ctx, store.Filter{})
	}
}

// groupPointers adapts grouped results to loader values. Every key has a
// group, possibly empty, so none of them reads as a miss.
func groupPointers[V any](groups [][]V) []*[]V {
	out := make([]*[]V, len(groups))
	for i := range groups {
		g := groups[i]
		if g == nil {
			g = []V{}
		}
		out[i] = &g
	}
	return out
}

package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/hanpama/membergraph/internal/dataloader"
	"github.com/hanpama/membergraph/internal/schema"
	"github.com/hanpama/membergraph/internal/store"
)

// resolveFunc produces the value of one async field. Reads only enqueue
// loader keys; the Future resolves after the next dispatch.
type resolveFunc func(ctx context.Context, r *Runtime, source any, args map[string]any) dataloader.Future[any]

var resolvers = map[schema.Coordinate]resolveFunc{
	"RootQueryType.memberTypes": func(_ context.Context, r *Runtime, _ any, _ map[string]any) dataloader.Future[any] {
		return listAll(r.loaders.AllMemberTypes, r.loaders.MemberTypeByID)
	},
	"RootQueryType.memberType": func(_ context.Context, r *Runtime, _ any, args map[string]any) dataloader.Future[any] {
		return dataloader.Erase(r.loaders.MemberTypeByID.Load(input(args).id("id")))
	},
	"RootQueryType.users": func(_ context.Context, r *Runtime, _ any, _ map[string]any) dataloader.Future[any] {
		return listAll(r.loaders.AllUsers, r.loaders.UserByID)
	},
	"RootQueryType.user": func(_ context.Context, r *Runtime, _ any, args map[string]any) dataloader.Future[any] {
		return dataloader.Erase(r.loaders.UserByID.Load(input(args).id("id")))
	},
	"RootQueryType.posts": func(_ context.Context, r *Runtime, _ any, _ map[string]any) dataloader.Future[any] {
		return listAll(r.loaders.AllPosts, r.loaders.PostByID)
	},
	"RootQueryType.post": func(_ context.Context, r *Runtime, _ any, args map[string]any) dataloader.Future[any] {
		return dataloader.Erase(r.loaders.PostByID.Load(input(args).id("id")))
	},
	"RootQueryType.profiles": func(_ context.Context, r *Runtime, _ any, _ map[string]any) dataloader.Future[any] {
		return listAll(r.loaders.AllProfiles, r.loaders.ProfileByID)
	},
	"RootQueryType.profile": func(_ context.Context, r *Runtime, _ any, args map[string]any) dataloader.Future[any] {
		return dataloader.Erase(r.loaders.ProfileByID.Load(input(args).id("id")))
	},

	"User.profile": onUser(func(r *Runtime, u *store.User) dataloader.Future[any] {
		return dataloader.Erase(r.loaders.ProfileByUserID.Load(u.ID))
	}),
	"User.posts": onUser(func(r *Runtime, u *store.User) dataloader.Future[any] {
		return dataloader.Map(r.loaders.PostsByAuthorID.Load(u.ID), func(posts *[]*store.Post) (any, error) {
			if posts == nil {
				return []*store.Post{}, nil
			}
			return *posts, nil
		})
	}),
	"User.userSubscribedTo": onUser(func(r *Runtime, u *store.User) dataloader.Future[any] {
		return r.usersOf(r.loaders.AuthorsBySubscriber.Load(u.ID))
	}),
	"User.subscribedToUser": onUser(func(r *Runtime, u *store.User) dataloader.Future[any] {
		return r.usersOf(r.loaders.SubscribersByAuthor.Load(u.ID))
	}),
	"Profile.memberType": func(_ context.Context, r *Runtime, source any, _ map[string]any) dataloader.Future[any] {
		p, ok := source.(*store.Profile)
		if !ok || p == nil {
			return dataloader.Fail[any](fmt.Errorf("source is %T, want *store.Profile", source))
		}
		return dataloader.Erase(r.loaders.MemberTypeByID.Load(p.MemberTypeID))
	},

	"Mutations.createUser":      mutation((*Runtime).createUser),
	"Mutations.createPost":      mutation((*Runtime).createPost),
	"Mutations.createProfile":   mutation((*Runtime).createProfile),
	"Mutations.changeUser":      mutation((*Runtime).changeUser),
	"Mutations.changePost":      mutation((*Runtime).changePost),
	"Mutations.changeProfile":   mutation((*Runtime).changeProfile),
	"Mutations.deleteUser":      mutation((*Runtime).deleteUser),
	"Mutations.deletePost":      mutation((*Runtime).deletePost),
	"Mutations.deleteProfile":   mutation((*Runtime).deleteProfile),
	"Mutations.subscribeTo":     mutation((*Runtime).subscribeTo),
	"Mutations.unsubscribeFrom": mutation((*Runtime).unsubscribeFrom),
}

func mutation(fn func(r *Runtime, ctx context.Context, args map[string]any) dataloader.Future[any]) resolveFunc {
	return func(ctx context.Context, r *Runtime, _ any, args map[string]any) dataloader.Future[any] {
		return fn(r, ctx, args)
	}
}

func onUser(fn func(r *Runtime, u *store.User) dataloader.Future[any]) resolveFunc {
	return func(_ context.Context, r *Runtime, source any, _ map[string]any) dataloader.Future[any] {
		u, ok := source.(*store.User)
		if !ok || u == nil {
			return dataloader.Fail[any](fmt.Errorf("source is %T, want *store.User", source))
		}
		return fn(r, u)
	}
}

// listAll loads a whole collection and primes the by-id loader with it, so
// later lookups of listed records are served from the cache.
func listAll[T store.Entity](all *dataloader.Bulk[T], byID *dataloader.Loader[string, T]) dataloader.Future[any] {
	return dataloader.Map(all.Load(), func(vs []*T) (any, error) {
		for _, v := range vs {
			byID.Prime((*v).Key(), v)
		}
		return vs, nil
	})
}

// usersOf resolves an edge id list to users. Ids without a user row are
// dropped.
func (r *Runtime) usersOf(ids dataloader.Future[*[]string]) dataloader.Future[any] {
	return dataloader.Then(ids, func(ids *[]string) dataloader.Future[any] {
		if ids == nil || len(*ids) == 0 {
			return dataloader.Value[any]([]*store.User{})
		}
		return dataloader.Map(r.loaders.UserByID.LoadMany(*ids), func(users []*store.User) (any, error) {
			return lo.Filter(users, func(u *store.User, _ int) bool { return u != nil }), nil
		})
	})
}

// mustExist fails with store.ErrNotFound when the loaded record is missing.
func mustExist[T any](what, id string, f dataloader.Future[*T]) dataloader.Future[*T] {
	return dataloader.Map(f, func(v *T) (*T, error) {
		if v == nil {
			return nil, fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
		}
		return v, nil
	})
}

// recordJSON is what delete and subscription mutations return.
func recordJSON(v any) dataloader.Future[any] {
	b, err := json.Marshal(v)
	if err != nil {
		return dataloader.Fail[any](err)
	}
	return dataloader.Value[any](string(b))
}

func (r *Runtime) createUser(ctx context.Context, args map[string]any) dataloader.Future[any] {
	dto, err := input(args).object("dto")
	if err != nil {
		return dataloader.Fail[any](err)
	}
	u, err := r.store.Users.Create(ctx, newUser(uuid.NewString(), dto))
	if err != nil {
		return dataloader.Fail[any](fmt.Errorf("create user: %w", err))
	}
	r.loaders.UserByID.Prime(u.ID, u)
	r.loaders.AllUsers.Clear()
	return dataloader.Value[any](u)
}

func (r *Runtime) createPost(ctx context.Context, args map[string]any) dataloader.Future[any] {
	dto, err := input(args).object("dto")
	if err != nil {
		return dataloader.Fail[any](err)
	}
	authorID := dto.id("authorId")
	author := mustExist("user", authorID, r.loaders.UserByID.Load(authorID))
	return dataloader.Then(author, func(*store.User) dataloader.Future[any] {
		p, err := r.store.Posts.Create(ctx, newPost(uuid.NewString(), dto))
		if err != nil {
			return dataloader.Fail[any](fmt.Errorf("create post: %w", err))
		}
		r.loaders.PostByID.Prime(p.ID, p)
		r.loaders.PostsByAuthorID.Clear(p.AuthorID)
		r.loaders.AllPosts.Clear()
		return dataloader.Value[any](p)
	})
}

func (r *Runtime) createProfile(ctx context.Context, args map[string]any) dataloader.Future[any] {
	dto, err := input(args).object("dto")
	if err != nil {
		return dataloader.Fail[any](err)
	}
	userID, memberTypeID := dto.id("userId"), dto.id("memberTypeId")
	user := mustExist("user", userID, r.loaders.UserByID.Load(userID))
	memberType := mustExist("member type", memberTypeID, r.loaders.MemberTypeByID.Load(memberTypeID))
	existing := r.loaders.ProfileByUserID.Load(userID)
	checked := dataloader.All([]dataloader.Future[any]{
		dataloader.Erase(user), dataloader.Erase(memberType), dataloader.Erase(existing),
	})
	return dataloader.Then(checked, func(found []any) dataloader.Future[any] {
		if p, _ := found[2].(*store.Profile); p != nil {
			return dataloader.Fail[any](fmt.Errorf("user %s already has profile %s: %w", userID, p.ID, store.ErrConflict))
		}
		p, err := r.store.Profiles.Create(ctx, newProfile(uuid.NewString(), dto))
		if err != nil {
			return dataloader.Fail[any](fmt.Errorf("create profile: %w", err))
		}
		r.loaders.ProfileByID.Prime(p.ID, p)
		r.loaders.ProfileByUserID.Prime(p.UserID, p)
		r.loaders.AllProfiles.Clear()
		return dataloader.Value[any](p)
	})
}

func (r *Runtime) changeUser(ctx context.Context, args map[string]any) dataloader.Future[any] {
	in := input(args)
	dto, err := in.object("dto")
	if err != nil {
		return dataloader.Fail[any](err)
	}
	u, err := r.store.Users.Update(ctx, in.id("id"), changeUser(dto))
	if err != nil {
		return dataloader.Fail[any](fmt.Errorf("change user %s: %w", in.id("id"), err))
	}
	r.loaders.UserByID.Prime(u.ID, u)
	r.loaders.AllUsers.Clear()
	return dataloader.Value[any](u)
}

func (r *Runtime) changePost(ctx context.Context, args map[string]any) dataloader.Future[any] {
	in := input(args)
	dto, err := in.object("dto")
	if err != nil {
		return dataloader.Fail[any](err)
	}
	p, err := r.store.Posts.Update(ctx, in.id("id"), changePost(dto))
	if err != nil {
		return dataloader.Fail[any](fmt.Errorf("change post %s: %w", in.id("id"), err))
	}
	r.loaders.PostByID.Prime(p.ID, p)
	r.loaders.PostsByAuthorID.Clear(p.AuthorID)
	r.loaders.AllPosts.Clear()
	return dataloader.Value[any](p)
}

func (r *Runtime) changeProfile(ctx context.Context, args map[string]any) dataloader.Future[any] {
	in := input(args)
	dto, err := in.object("dto")
	if err != nil {
		return dataloader.Fail[any](err)
	}
	p, err := r.store.Profiles.Update(ctx, in.id("id"), changeProfile(dto))
	if err != nil {
		return dataloader.Fail[any](fmt.Errorf("change profile %s: %w", in.id("id"), err))
	}
	r.loaders.ProfileByID.Prime(p.ID, p)
	r.loaders.ProfileByUserID.Prime(p.UserID, p)
	r.loaders.AllProfiles.Clear()
	return dataloader.Value[any](p)
}

func (r *Runtime) deleteUser(ctx context.Context, args map[string]any) dataloader.Future[any] {
	id := input(args).id("id")
	u, err := r.store.Users.Delete(ctx, id)
	if err != nil {
		return dataloader.Fail[any](fmt.Errorf("delete user %s: %w", id, err))
	}
	r.loaders.UserByID.Clear(id)
	r.loaders.AllUsers.Clear()
	return recordJSON(u)
}

func (r *Runtime) deletePost(ctx context.Context, args map[string]any) dataloader.Future[any] {
	id := input(args).id("id")
	p, err := r.store.Posts.Delete(ctx, id)
	if err != nil {
		return dataloader.Fail[any](fmt.Errorf("delete post %s: %w", id, err))
	}
	r.loaders.PostByID.Clear(id)
	r.loaders.PostsByAuthorID.Clear(p.AuthorID)
	r.loaders.AllPosts.Clear()
	return recordJSON(p)
}

func (r *Runtime) deleteProfile(ctx context.Context, args map[string]any) dataloader.Future[any] {
	id := input(args).id("id")
	p, err := r.store.Profiles.Delete(ctx, id)
	if err != nil {
		return dataloader.Fail[any](fmt.Errorf("delete profile %s: %w", id, err))
	}
	r.loaders.ProfileByID.Clear(id)
	r.loaders.ProfileByUserID.Clear(p.UserID)
	r.loaders.AllProfiles.Clear()
	return recordJSON(p)
}

func (r *Runtime) subscribeTo(ctx context.Context, args map[string]any) dataloader.Future[any] {
	in := input(args)
	userID, authorID := in.id("userId"), in.id("authorId")
	both := dataloader.All([]dataloader.Future[*store.User]{
		mustExist("user", userID, r.loaders.UserByID.Load(userID)),
		mustExist("user", authorID, r.loaders.UserByID.Load(authorID)),
	})
	return dataloader.Then(both, func([]*store.User) dataloader.Future[any] {
		sub, err := r.store.Subscriptions.Add(ctx, userID, authorID)
		if err != nil {
			return dataloader.Fail[any](fmt.Errorf("subscribe %s to %s: %w", userID, authorID, err))
		}
		r.clearEdge(userID, authorID)
		return recordJSON(sub)
	})
}

func (r *Runtime) unsubscribeFrom(ctx context.Context, args map[string]any) dataloader.Future[any] {
	in := input(args)
	userID, authorID := in.id("userId"), in.id("authorId")
	sub, err := r.store.Subscriptions.Remove(ctx, userID, authorID)
	if err != nil {
		return dataloader.Fail[any](fmt.Errorf("unsubscribe %s from %s: %w", userID, authorID, err))
	}
	r.clearEdge(userID, authorID)
	return recordJSON(sub)
}

func (r *Runtime) clearEdge(subscriberID, authorID string) {
	r.loaders.AuthorsBySubscriber.Clear(subscriberID)
	r.loaders.SubscribersByAuthor.Clear(authorID)
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mutationResolvers extends the fixture with mutations that succeed unless
// given an empty name or an unknown id.
func mutationResolvers() map[string]MockResolver {
	r := memberResolvers()
	r["Mutation.createUser"] = func(_ context.Context, _ any, args map[string]any) (any, error) {
		name := args["name"].(string)
		if name == "" {
			return nil, errors.New("name must not be empty")
		}
		return map[string]any{"id": "new-" + name, "name": name}, nil
	}
	r["Mutation.subscribeTo"] = func(ctx context.Context, src any, args map[string]any) (any, error) {
		return userByID(ctx, src, map[string]any{"id": args["userId"]})
	}
	r["Mutation.deleteUser"] = func(_ context.Context, _ any, args map[string]any) (any, error) {
		if args["id"] != "u1" && args["id"] != "u2" {
			return nil, fmt.Errorf("user %s not found", args["id"])
		}
		return args["id"], nil
	}
	return r
}

func TestMutation_RootFieldsRunInOrder(t *testing.T) {
	rt := NewMockRuntime(mutationResolvers())

	got := run(t, memberSchema(t), rt, `mutation {
		a: createUser(name: "Carol") { name }
		b: deleteUser(id: "u9")
		c: createUser(name: "Dan") { name }
	}`, nil)

	want := outcome{
		Executed: true,
		Data: map[string]any{
			"a": map[string]any{"name": "Carol"},
			"b": nil,
			"c": map[string]any{"name": "Dan"},
		},
		Errors: []located{{Message: "user u9 not found", Path: Path{"b"}, Code: codeResolver}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	wantCalls := "sync Mutation.createUser\nsync User.name\nsync Mutation.deleteUser\nsync Mutation.createUser\nsync User.name\n"
	if diff := cmp.Diff(wantCalls, rt.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestMutation_EachFieldDrainsBeforeTheNext(t *testing.T) {
	rt := NewMockRuntime(mutationResolvers())
	sch := memberSchema(t, "Mutation.createUser", "User.posts")

	got := run(t, sch, rt, `mutation {
		a: createUser(name: "Carol") { posts { id } }
		b: createUser(name: "Dan") { posts { id } }
	}`, nil)

	want := outcome{Executed: true, Data: map[string]any{
		"a": map[string]any{"posts": []any{}},
		"b": map[string]any{"posts": []any{}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	// a query would batch both createUser calls; a mutation may not
	wantCalls := "async#1 Mutation.createUser\nasync#2 User.posts\nasync#3 Mutation.createUser\nasync#4 User.posts\n"
	if diff := cmp.Diff(wantCalls, rt.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"name": "Dan"}, rt.GetCalls()[2].Args); diff != "" {
		t.Fatalf("second createUser args (-want +got):\n%s", diff)
	}
}

func TestMutation_NonNullFailureStopsRemainingFields(t *testing.T) {
	for _, async := range []bool{false, true} {
		t.Run(fmt.Sprintf("async=%v", async), func(t *testing.T) {
			sch := memberSchema(t)
			if async {
				sch = memberSchema(t, "Mutation.createUser")
			}
			rt := NewMockRuntime(mutationResolvers())

			got := run(t, sch, rt, `mutation {
				a: subscribeTo(userId: "u1", authorId: "u2") { id }
				b: createUser(name: "") { id }
				c: deleteUser(id: "u2")
			}`, nil)

			want := outcome{
				Executed: true,
				Errors:   []located{{Message: "name must not be empty", Path: Path{"b"}, Code: codeResolver}},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
			for _, c := range rt.GetCalls() {
				if c.Field == "deleteUser" {
					t.Fatalf("deleteUser ran after a non-null failure:\n%s", rt.Calls())
				}
			}
		})
	}
}

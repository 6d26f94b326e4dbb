package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	gqlerrors "github.com/hanpama/membergraph/internal/gqlerrors"
)

func TestExecuteRequest_OperationSelection(t *testing.T) {
	sch := memberSchema(t)
	const two = `query Members { users { id } } query Types { memberTypes { id } }`

	tests := []struct {
		name      string
		query     string
		operation string
		want      outcome
	}{
		{
			name:  "anonymous operation",
			query: `{ user(id: "u1") { name } }`,
			want:  outcome{Executed: true, Data: map[string]any{"user": map[string]any{"name": "Alice"}}},
		},
		{
			name:  "single named operation without a name",
			query: `query One { user(id: "u2") { name } }`,
			want:  outcome{Executed: true, Data: map[string]any{"user": map[string]any{"name": "Bob"}}},
		},
		{
			name:      "named operation among several",
			query:     two,
			operation: "Types",
			want: outcome{Executed: true, Data: map[string]any{
				"memberTypes": []any{map[string]any{"id": "BASIC"}, map[string]any{"id": "BUSINESS"}},
			}},
		},
		{
			name:  "no operation in document",
			query: `fragment F on Query { users { id } }`,
			want:  outcome{Errors: []located{{Message: "operation not found", Code: gqlerrors.ValidationFailed}}},
		},
		{
			name:  "several operations and no name",
			query: two,
			want:  outcome{Errors: []located{{Message: "operation not found", Code: gqlerrors.ValidationFailed}}},
		},
		{
			name:      "unknown operation name",
			query:     two,
			operation: "Posts",
			want:      outcome{Errors: []located{{Message: `Unknown operation named "Posts".`, Code: gqlerrors.ValidationFailed}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := NewMockRuntime(memberResolvers())
			res := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, tt.query), tt.operation, nil, nil)
			if diff := cmp.Diff(tt.want, summarize(res)); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
			if !tt.want.Executed && len(rt.GetCalls()) != 0 {
				t.Fatalf("resolvers ran for a rejected request:\n%s", rt.Calls())
			}
		})
	}
}

func TestExecuteRequest_Variables(t *testing.T) {
	sch := memberSchema(t)

	tests := []struct {
		name      string
		query     string
		variables map[string]any
		want      outcome
	}{
		{
			name:      "provided",
			query:     `query($id: ID!) { user(id: $id) { name } }`,
			variables: map[string]any{"id": "u2"},
			want:      outcome{Executed: true, Data: map[string]any{"user": map[string]any{"name": "Bob"}}},
		},
		{
			name:  "default",
			query: `query($id: ID = "u1") { user(id: $id) { name } }`,
			want:  outcome{Executed: true, Data: map[string]any{"user": map[string]any{"name": "Alice"}}},
		},
		{
			name:  "missing required",
			query: `query($id: ID!) { user(id: $id) { name } }`,
			want:  outcome{Errors: []located{{Message: "variable $id of required type ID! was not provided", Code: codeArgument}}},
		},
		{
			name:      "null for non-null",
			query:     `query($id: ID!) { user(id: $id) { name } }`,
			variables: map[string]any{"id": nil},
			want:      outcome{Errors: []located{{Message: "variable $id of type ID! cannot be null", Code: codeArgument}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(t, sch, NewMockRuntime(memberResolvers()), tt.query, tt.variables)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecuteRequest_ErrorPaths(t *testing.T) {
	sch := memberSchema(t, "User.posts")
	boom := errors.New("boom")

	t.Run("root field", func(t *testing.T) {
		rt := NewMockRuntime(memberResolvers())
		rt.SetResolver("Query", "user", NewMockErrorResolver(boom))

		got := run(t, sch, rt, `{ user(id: "u1") { name } }`, nil)
		want := outcome{
			Executed: true,
			Data:     map[string]any{"user": nil},
			Errors:   []located{{Message: "boom", Path: Path{"user"}, Code: codeResolver}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nested nullable field", func(t *testing.T) {
		rt := NewMockRuntime(memberResolvers())
		rt.SetResolver("Profile", "yearOfBirth", NewMockErrorResolver(boom))

		got := run(t, sch, rt, `{ user(id: "u1") { profile { id yearOfBirth } } }`, nil)
		want := outcome{
			Executed: true,
			Data:     map[string]any{"user": map[string]any{"profile": map[string]any{"id": "pr1", "yearOfBirth": nil}}},
			Errors:   []located{{Message: "boom", Path: Path{"user", "profile", "yearOfBirth"}, Code: codeResolver}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("list index", func(t *testing.T) {
		rt := NewMockRuntime(memberResolvers())
		rt.SetResolver("User", "posts", func(ctx context.Context, src any, args map[string]any) (any, error) {
			if src.(map[string]any)["id"] == "u2" {
				return nil, boom
			}
			return []any{hello}, nil
		})

		got := run(t, sch, rt, `{ users { name posts { title } } }`, nil)
		// posts is [Post!]! so the failure nulls Bob, and users is
		// [User!]! so that nulls the list and then the root.
		want := outcome{
			Executed: true,
			Errors:   []located{{Message: "boom", Path: Path{"users", 1, "posts"}, Code: codeResolver}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})
}

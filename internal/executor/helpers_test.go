package executor

import (
	"context"
	"testing"

	gqlerrors "github.com/hanpama/membergraph/internal/gqlerrors"
	language "github.com/hanpama/membergraph/internal/language"
	schema "github.com/hanpama/membergraph/internal/schema"
)

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

// located is the part of a result error the tests assert on.
type located struct {
	Message string
	Path    Path
	Code    string
}

// outcome is an ExecutionResult reduced to comparable values.
type outcome struct {
	Data     any
	Errors   []located
	Executed bool
}

func summarize(res *ExecutionResult) outcome {
	out := outcome{Data: res.Data, Executed: res.Executed()}
	for _, e := range res.Errors {
		var path Path
		if e.Path != nil {
			path = Path(e.Path)
		}
		out.Errors = append(out.Errors, located{Message: e.Message, Path: path, Code: e.Code()})
	}
	return out
}

func newScalarType(name string) *schema.Type {
	return schema.NewType(name, schema.TypeKindScalar, "")
}

var (
	codeResolver = gqlerrors.ResolverFailed
	codeMismatch = gqlerrors.SchemaMismatch
	codeArgument = gqlerrors.ArgumentCoercionFailed
)

func newTestCoercer(sch *schema.Schema) *coercer {
	return &coercer{ctx: context.Background(), runtime: NewMockRuntime(nil), schema: sch}
}

const memberSDL = `
interface Node { id: ID! }

type Query {
  node(id: ID!): Node
  user(id: ID!): User
  users: [User!]!
  memberTypes: [MemberType!]!
}

type Mutation {
  createUser(name: String!): User!
  subscribeTo(userId: ID!, authorId: ID!): User
  deleteUser(id: ID!): ID
}

type User implements Node {
  id: ID!
  name: String!
  posts: [Post!]!
  profile: Profile
  subscribedTo: [User!]!
}

type Post { id: ID! title: String! }

type Profile { id: ID! yearOfBirth: Int memberType: MemberType! }

type MemberType { id: ID! discount: Float! }
`

// memberSchema builds the member fixture schema with async marking the
// fields that go through BatchResolveAsync.
func memberSchema(t *testing.T, async ...schema.Coordinate) *schema.Schema {
	t.Helper()
	sch, err := schema.Build([]*language.Source{{Name: "member.graphql", Input: memberSDL}}, async)
	if err != nil {
		t.Fatalf("build member schema: %v", err)
	}
	return sch
}

var (
	alice   = map[string]any{"id": "u1", "name": "Alice"}
	bob     = map[string]any{"id": "u2", "name": "Bob"}
	hello   = map[string]any{"id": "p1", "title": "Hello", "authorId": "u1"}
	draft   = map[string]any{"id": "p2", "title": "Draft", "authorId": "u2"}
	notes   = map[string]any{"id": "p3", "title": "Notes", "authorId": "u2"}
	profile = map[string]any{"id": "pr1", "yearOfBirth": 1990, "userId": "u1"}
	basic   = map[string]any{"id": "BASIC", "discount": 2.3}
	pro     = map[string]any{"id": "BUSINESS", "discount": 7.7}
)

func userByID(_ context.Context, _ any, args map[string]any) (any, error) {
	switch args["id"] {
	case "u1":
		return alice, nil
	case "u2":
		return bob, nil
	}
	return nil, nil
}

// memberResolvers answers every field of memberSDL from the fixture records.
func memberResolvers() map[string]MockResolver {
	return map[string]MockResolver{
		"Query.node":        userByID,
		"Query.user":        userByID,
		"Query.users":       NewMockValueResolver([]any{alice, bob}),
		"Query.memberTypes": NewMockValueResolver([]any{basic, pro}),

		"User.id":   field("id"),
		"User.name": field("name"),
		"User.posts": func(_ context.Context, src any, _ map[string]any) (any, error) {
			out := []any{}
			for _, p := range []map[string]any{hello, draft, notes} {
				if p["authorId"] == src.(map[string]any)["id"] {
					out = append(out, p)
				}
			}
			return out, nil
		},
		"User.profile": func(_ context.Context, src any, _ map[string]any) (any, error) {
			if src.(map[string]any)["id"] == "u1" {
				return profile, nil
			}
			return nil, nil
		},
		"User.subscribedTo": func(_ context.Context, src any, _ map[string]any) (any, error) {
			if src.(map[string]any)["id"] == "u1" {
				return []any{bob}, nil
			}
			return []any{}, nil
		},

		"Post.id":    field("id"),
		"Post.title": field("title"),

		"Profile.id":          field("id"),
		"Profile.yearOfBirth": field("yearOfBirth"),
		"Profile.memberType":  NewMockValueResolver(basic),

		"MemberType.id":       field("id"),
		"MemberType.discount": field("discount"),
	}
}

func noArgs() map[string]any { return map[string]any{} }

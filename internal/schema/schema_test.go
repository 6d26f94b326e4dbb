package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/membergraph/internal/language"
)

func loadSources(t *testing.T, names ...string) []*language.Source {
	t.Helper()
	var out []*language.Source
	for _, name := range names {
		out = append(out, &language.Source{Name: name, Input: mustReadFile(t, filepath.Join("testdata", name))})
	}
	return out
}

func TestBuildMergesExtensions(t *testing.T) {
	s, err := Build(loadSources(t, "base.graphql", "extensions.graphql"), []Coordinate{"RootQueryType.user", "User.friends"})
	require.NoError(t, err)

	assert.Equal(t, "RootQueryType", s.QueryType)
	assert.Equal(t, "Mutations", s.MutationType)

	user, err := s.Describe("User")
	require.NoError(t, err)

	var names []string
	for _, f := range user.GetOrderedFields() {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"id", "name", "friends", "memberType"}, names); diff != "" {
		t.Errorf("User fields mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "[User!]!", user.Field("friends").Type.String())
	assert.True(t, user.Field("friends").Async)
	assert.False(t, user.Field("name").Async)
	assert.True(t, user.Field("memberType").IsDeprecated)

	root := s.GetQueryType()
	require.NotNil(t, root)
	assert.True(t, root.Field("user").Async)
	assert.False(t, root.Field("users").Async)
	assert.Nil(t, root.Field("__schema"))

	arg := root.Field("memberType").Argument("id")
	require.NotNil(t, arg)
	assert.Equal(t, "MemberTypeId!", arg.Type.String())
}

func TestDescribeUnknownType(t *testing.T) {
	s, err := Build(loadSources(t, "base.graphql"), nil)
	require.NoError(t, err)

	_, err = s.Describe("Comment")
	assert.True(t, errors.Is(err, ErrTypeNotFound))

	enum, err := s.Describe("MemberTypeId")
	require.NoError(t, err)
	assert.True(t, enum.HasEnumValue("BUSINESS"))
	assert.False(t, enum.HasEnumValue("GOLD"))

	str, err := s.Describe("String")
	require.NoError(t, err)
	assert.True(t, str.BuiltIn)
}

func TestBuildRejectsConflictingFieldTypes(t *testing.T) {
	sources := loadSources(t, "base.graphql")
	sources = append(sources, &language.Source{Name: "bad.graphql", Input: `extend type User { name: Int }`})

	_, err := Build(sources, nil)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "User", conflict.Type)
	assert.Equal(t, "name", conflict.Field)
	assert.Equal(t, "String!", conflict.First)
	assert.Equal(t, "Int", conflict.Later)
}

func TestBuildRejectsConflictingArguments(t *testing.T) {
	sources := loadSources(t, "base.graphql")
	sources = append(sources, &language.Source{Name: "bad.graphql", Input: `extend type RootQueryType { user(id: ID!): User }`})

	_, err := Build(sources, nil)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "user", conflict.Field)
}

func TestBuildRejectsUnboundResolvers(t *testing.T) {
	for _, c := range []Coordinate{"Comment.body", "User.email", "User", ".id"} {
		t.Run(string(c), func(t *testing.T) {
			_, err := Build(loadSources(t, "base.graphql"), []Coordinate{c})
			var unbound *UnboundError
			require.ErrorAs(t, err, &unbound)
			assert.Equal(t, c, unbound.Coordinate)
		})
	}
}

func TestBuildRejectsUndeclaredFieldType(t *testing.T) {
	_, err := BuildFromSDL(`type Query { comment: Comment }`)
	require.Error(t, err)
}

func TestSchemaRenderSnapshot(t *testing.T) {
	s, err := Build(loadSources(t, "base.graphql", "extensions.graphql"), nil)
	require.NoError(t, err)

	actual := Render(s)

	snapshotPath := filepath.Join("testdata", "schema_rendered.graphql")
	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		require.NoError(t, os.WriteFile(snapshotPath, []byte(actual), 0o644))
		t.Logf("Created snapshot file: %s", snapshotPath)
		return
	}
	expected := mustReadFile(t, snapshotPath)
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("Rendered schema snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	s, err := Build(loadSources(t, "base.graphql", "extensions.graphql"), nil)
	require.NoError(t, err)

	sdl := Render(s)
	again, err := BuildFromSDL(sdl)
	require.NoError(t, err, sdl)

	if diff := cmp.Diff(sdl, Render(again)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func mustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read file: %s", path)
	return string(content)
}

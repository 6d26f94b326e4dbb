package gqlerrors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

func TestError(t *testing.T) {
	err := New(ResolverFailed, "boom")

	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, ResolverFailed, err.Code())

	l := ErrorList{err, err}
	assert.Equal(t, "boom. boom", l.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ResolverFailed, cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, ResolverFailed))
	assert.False(t, IsCode(cause, ResolverFailed))

	again := Wrap(Undefined, err)
	assert.Same(t, err, again)
}

func TestWithPathCopies(t *testing.T) {
	err := New(SchemaMismatch, "unknown field")
	located := err.WithPath([]any{"user", 0, "name"})

	assert.Nil(t, err.Path)
	assert.Equal(t, []any{"user", 0, "name"}, located.Path)
	assert.Equal(t, SchemaMismatch, located.Code())
}

func TestFormatError(t *testing.T) {
	expected := ErrorList{New(Undefined, "error")}
	for _, e := range []error{
		New(Undefined, "error"),
		ErrorList{New(Undefined, "error")},
		&gqlerror.Error{Message: "error"},
		gqlerror.List{&gqlerror.Error{Message: "error"}},
		errors.New("error"),
	} {
		actual := FormatError(e)
		bExpected, _ := json.Marshal(expected)
		bActual, _ := json.Marshal(actual)
		assert.JSONEq(t, string(bExpected), string(bActual))
	}
}

func TestFormatErrorNilValue(t *testing.T) {
	assert.Nil(t, FormatError(nil))
}

func TestFormatErrorKeepsLocationsAndPath(t *testing.T) {
	src := &gqlerror.Error{
		Message:   "Unexpected Name",
		Locations: []gqlerror.Location{{Line: 1, Column: 3}},
		Path:      ast.Path{ast.PathName("users"), ast.PathIndex(1)},
	}
	list := FormatWithCode(src, ParseFailed)
	require.Len(t, list, 1)

	b, err := json.Marshal(list[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"message": "Unexpected Name",
		"locations": [{"line": 1, "column": 3}],
		"path": ["users", 1],
		"extensions": {"code": "GRAPHQL_PARSE_FAILED"}
	}`, string(b))
}

func TestFormatWithCodeKeepsExistingCode(t *testing.T) {
	list := FormatWithCode(ErrorList{New(ValidationFailed, "too deep")}, ParseFailed)
	require.Len(t, list, 1)
	assert.Equal(t, ValidationFailed, list[0].Code())
}

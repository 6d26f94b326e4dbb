// Package language is the parsing surface of the engine. Documents are
// gqlparser ASTs; the aliases below are the parts the executor walks.
package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

type (
	Source = ast.Source

	QueryDocument       = ast.QueryDocument
	OperationDefinition = ast.OperationDefinition
	FragmentDefinition  = ast.FragmentDefinition

	SelectionSet   = ast.SelectionSet
	Field          = ast.Field
	FragmentSpread = ast.FragmentSpread
	InlineFragment = ast.InlineFragment

	Directive     = ast.Directive
	DirectiveList = ast.DirectiveList
	ArgumentList  = ast.ArgumentList
	Value         = ast.Value
	Type          = ast.Type
)

type Operation = ast.Operation

const (
	Query    Operation = ast.Query
	Mutation Operation = ast.Mutation
)

type ValueKind = ast.ValueKind

const (
	Variable     ValueKind = ast.Variable
	IntValue     ValueKind = ast.IntValue
	FloatValue   ValueKind = ast.FloatValue
	StringValue  ValueKind = ast.StringValue
	BlockValue   ValueKind = ast.BlockValue
	BooleanValue ValueKind = ast.BooleanValue
	NullValue    ValueKind = ast.NullValue
	EnumValue    ValueKind = ast.EnumValue
	ListValue    ValueKind = ast.ListValue
	ObjectValue  ValueKind = ast.ObjectValue
)

// ParseQuery parses an executable document. Nothing is validated beyond
// syntax; a syntax error is a *gqlerror.Error carrying its location.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

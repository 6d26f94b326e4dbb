package executor

import (
	"github.com/samber/lo"

	language "github.com/hanpama/membergraph/internal/language"
	schema "github.com/hanpama/membergraph/internal/schema"
)

// collectedField is one response key and every selection merged into it.
type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

// collectedFieldMap keeps response keys in the order they first appear.
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

func (m *collectedFieldMap) add(f *language.Field) {
	key := f.Alias
	if key == "" {
		key = f.Name
	}
	if i, ok := m.index[key]; ok {
		m.fields[i].Fields = append(m.fields[i].Fields, f)
		return
	}
	m.index[key] = len(m.fields)
	m.fields = append(m.fields, collectedField{ResponseName: key, Fields: []*language.Field{f}})
}

func (m *collectedFieldMap) orderedFields() []collectedField { return m.fields }

// collectFields flattens fragments and applies @skip and @include for a
// selection set evaluated against objectType. Each named fragment is
// expanded at most once.
func collectFields(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet) *collectedFieldMap {
	c := &fieldCollector{
		state:   state,
		object:  objectType,
		visited: map[string]bool{},
		out:     &collectedFieldMap{index: map[string]int{}},
	}
	c.collect(selectionSet)
	return c.out
}

type fieldCollector struct {
	state   *executionState
	object  *schema.Type
	visited map[string]bool
	out     *collectedFieldMap
}

func (c *fieldCollector) collect(selectionSet language.SelectionSet) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if c.included(sel.Directives) {
				c.out.add(sel)
			}
		case *language.InlineFragment:
			if c.included(sel.Directives) && c.applies(sel.TypeCondition) {
				c.collect(sel.SelectionSet)
			}
		case *language.FragmentSpread:
			if !c.included(sel.Directives) || c.visited[sel.Name] {
				continue
			}
			c.visited[sel.Name] = true
			def := c.state.document.Fragments.ForName(sel.Name)
			if def == nil || !c.applies(def.TypeCondition) || !c.included(def.Directives) {
				continue
			}
			c.collect(def.SelectionSet)
		}
	}
}

// included evaluates @skip and @include. A non-boolean condition is
// ignored.
func (c *fieldCollector) included(directives language.DirectiveList) bool {
	if skip, ok := c.condition(directives.ForName("skip")); ok && skip {
		return false
	}
	if include, ok := c.condition(directives.ForName("include")); ok && !include {
		return false
	}
	return true
}

func (c *fieldCollector) condition(d *language.Directive) (value, ok bool) {
	if d == nil {
		return false, false
	}
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false, false
	}
	v, _ := literal(arg.Value, c.state.variableValues)
	value, ok = v.(bool)
	return value, ok
}

// applies reports whether a fragment with typeCondition applies to the
// object being collected.
func (c *fieldCollector) applies(typeCondition string) bool {
	if typeCondition == "" || typeCondition == c.object.Name {
		return true
	}
	t := c.state.schema.Types[typeCondition]
	if t == nil {
		return false
	}
	switch t.Kind {
	case schema.TypeKindInterface:
		return lo.Contains(c.object.Interfaces, typeCondition)
	case schema.TypeKindUnion:
		return lo.Contains(t.PossibleTypes, c.object.Name)
	}
	return false
}

// mergeSelectionSets concatenates the sub-selections of merged fields.
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

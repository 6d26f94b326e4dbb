package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/hanpama/membergraph/internal/language"
)

// Coordinate names a field as "Type.field".
type Coordinate string

func (c Coordinate) split() (typeName, fieldName string, ok bool) {
	typeName, fieldName, ok = strings.Cut(string(c), ".")
	return typeName, fieldName, ok && typeName != "" && fieldName != ""
}

// ConflictError reports a field declared more than once with different
// result types or arguments.
type ConflictError struct {
	Type, Field  string
	First, Later string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("field %s.%s declared as %s and %s", e.Type, e.Field, e.First, e.Later)
}

// UnboundError reports a resolver binding that names a type or field the
// SDL does not declare.
type UnboundError struct {
	Coordinate Coordinate
	Reason     string
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("resolver %s: %s", e.Coordinate, e.Reason)
}

// Build assembles the schema from SDL sources. A type may be declared (or
// extended) in several sources; identical field redeclarations merge, any
// other redeclaration fails. Every coordinate in resolved marks that field
// as Async, meaning a bound resolver produces its value.
func Build(sources []*language.Source, resolved []Coordinate) (*Schema, error) {
	all := append([]*ast.Source{validator.Prelude}, sources...)
	doc, err := parser.ParseSchemas(all...)
	if err != nil {
		return nil, err
	}
	if err := mergeRedeclarations(doc); err != nil {
		return nil, err
	}
	def, verr := validator.ValidateSchemaDocument(doc)
	if verr != nil {
		return nil, verr
	}

	s := fromAST(def)
	for _, c := range resolved {
		typeName, fieldName, ok := c.split()
		if !ok {
			return nil, &UnboundError{Coordinate: c, Reason: "want Type.field"}
		}
		t, ok := s.Types[typeName]
		if !ok {
			return nil, &UnboundError{Coordinate: c, Reason: "undeclared type " + typeName}
		}
		f := t.Field(fieldName)
		if f == nil {
			return nil, &UnboundError{Coordinate: c, Reason: "undeclared field " + fieldName}
		}
		f.SetAsync(true)
	}
	return s, nil
}

// BuildFromSDL builds a schema from a single SDL document without resolver
// bindings.
func BuildFromSDL(sdl string) (*Schema, error) {
	return Build([]*language.Source{{Name: "schema.graphql", Input: sdl}}, nil)
}

// mergeRedeclarations folds repeated definitions and extensions of a type
// into its first definition so the validator sees each field once.
func mergeRedeclarations(doc *ast.SchemaDocument) error {
	base := map[string]*ast.Definition{}
	for _, d := range doc.Definitions {
		if _, seen := base[d.Name]; !seen {
			base[d.Name] = d
		}
	}

	fold := func(defs ast.DefinitionList) (ast.DefinitionList, error) {
		kept := defs[:0]
		for _, d := range defs {
			b, ok := base[d.Name]
			if !ok || b == d {
				kept = append(kept, d)
				continue
			}
			if b.Kind != d.Kind {
				return nil, &ConflictError{Type: d.Name, First: string(b.Kind), Later: string(d.Kind)}
			}
			if err := mergeDefinition(b, d); err != nil {
				return nil, err
			}
		}
		return kept, nil
	}

	var err error
	if doc.Definitions, err = fold(doc.Definitions); err != nil {
		return err
	}
	doc.Extensions, err = fold(doc.Extensions)
	return err
}

func mergeDefinition(into, from *ast.Definition) error {
	for _, f := range from.Fields {
		existing := into.Fields.ForName(f.Name)
		if existing == nil {
			into.Fields = append(into.Fields, f)
			continue
		}
		if a, b := fieldSignature(existing), fieldSignature(f); a != b {
			return &ConflictError{Type: into.Name, Field: f.Name, First: a, Later: b}
		}
	}
	for _, v := range from.EnumValues {
		if into.EnumValues.ForName(v.Name) == nil {
			into.EnumValues = append(into.EnumValues, v)
		}
	}
	into.Interfaces = appendMissing(into.Interfaces, from.Interfaces)
	into.Types = appendMissing(into.Types, from.Types)
	into.Directives = append(into.Directives, from.Directives...)
	return nil
}

func fieldSignature(f *ast.FieldDefinition) string {
	var b strings.Builder
	if len(f.Arguments) > 0 {
		b.WriteString("(")
		for i, a := range f.Arguments {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Name + ": " + a.Type.String())
		}
		b.WriteString(") ")
	}
	b.WriteString(f.Type.String())
	return b.String()
}

func appendMissing(into, from []string) []string {
	for _, name := range from {
		found := false
		for _, have := range into {
			if have == name {
				found = true
				break
			}
		}
		if !found {
			into = append(into, name)
		}
	}
	return into
}

func fromAST(def *ast.Schema) *Schema {
	s := NewSchema("")
	if def.Query != nil {
		s.SetQueryType(def.Query.Name)
	}
	if def.Mutation != nil {
		s.SetMutationType(def.Mutation.Name)
	}
	names := make([]string, 0, len(def.Types))
	for name := range def.Types {
		if strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.AddType(buildType(def, def.Types[name]))
	}
	return s
}

func buildType(def *ast.Schema, d *ast.Definition) *Type {
	t := NewType(d.Name, kindOf(d.Kind), d.Description)
	t.BuiltIn = d.BuiltIn
	switch d.Kind {
	case ast.Object, ast.Interface:
		t.Interfaces = append(t.Interfaces, d.Interfaces...)
		for _, f := range d.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			t.AddField(buildField(f))
		}
		if d.Kind == ast.Interface {
			for _, impl := range def.PossibleTypes[d.Name] {
				t.AddPossibleType(impl.Name)
			}
		}
	case ast.Union:
		t.PossibleTypes = append(t.PossibleTypes, d.Types...)
	case ast.Enum:
		for _, v := range d.EnumValues {
			ev := &EnumValue{Name: v.Name, Description: v.Description}
			if dep := v.Directives.ForName("deprecated"); dep != nil {
				ev.IsDeprecated = true
				ev.DeprecationReason = deprecationReason(dep)
			}
			t.AddEnumValue(ev)
		}
	case ast.InputObject:
		for _, f := range d.Fields {
			t.AddInputField(buildInputValue(f.Name, f.Description, f.Type, f.DefaultValue))
		}
	}
	return t
}

func buildField(f *ast.FieldDefinition) *Field {
	out := NewField(f.Name, f.Description, buildTypeRef(f.Type))
	for _, a := range f.Arguments {
		out.AddArgument(buildInputValue(a.Name, a.Description, a.Type, a.DefaultValue))
	}
	if dep := f.Directives.ForName("deprecated"); dep != nil {
		out.Deprecate(deprecationReason(dep))
	}
	return out
}

func buildInputValue(name, description string, typ *ast.Type, def *ast.Value) *InputValue {
	in := NewInputValue(name, description, buildTypeRef(typ))
	if def != nil {
		if v, err := def.Value(nil); err == nil {
			in.SetDefault(v)
		}
	}
	return in
}

func buildTypeRef(t *ast.Type) *TypeRef {
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}

func deprecationReason(d *ast.Directive) string {
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw
	}
	return ""
}

func kindOf(k ast.DefinitionKind) TypeKind {
	switch k {
	case ast.Object:
		return TypeKindObject
	case ast.Interface:
		return TypeKindInterface
	case ast.Union:
		return TypeKindUnion
	case ast.Enum:
		return TypeKindEnum
	case ast.InputObject:
		return TypeKindInputObject
	}
	return TypeKindScalar
}

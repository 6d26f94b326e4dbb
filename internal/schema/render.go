package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render produces SDL from the Schema. Built-in types are omitted and the
// remaining types are emitted sorted by name so output is stable.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	r := &renderer{}
	r.schemaBlock(s)

	names := make([]string, 0, len(s.Types))
	for name, typ := range s.Types {
		if !typ.BuiltIn {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		r.typ(s.Types[name])
	}
	return strings.TrimRight(r.String(), "\n") + "\n"
}

type renderer struct{ strings.Builder }

func (r *renderer) schemaBlock(s *Schema) {
	if (s.QueryType == "" || s.QueryType == "Query") && (s.MutationType == "" || s.MutationType == "Mutation") {
		return
	}
	r.WriteString("schema {\n")
	if s.QueryType != "" {
		fmt.Fprintf(r, "  query: %s\n", s.QueryType)
	}
	if s.MutationType != "" {
		fmt.Fprintf(r, "  mutation: %s\n", s.MutationType)
	}
	r.WriteString("}\n\n")
}

func (r *renderer) typ(t *Type) {
	r.description(t.Description, "")
	switch t.Kind {
	case TypeKindScalar:
		fmt.Fprintf(r, "scalar %s\n\n", t.Name)
		return
	case TypeKindUnion:
		fmt.Fprintf(r, "union %s = %s\n\n", t.Name, strings.Join(t.PossibleTypes, " | "))
		return
	case TypeKindEnum:
		fmt.Fprintf(r, "enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			r.description(v.Description, "  ")
			r.WriteString("  " + v.Name)
			r.deprecation(v.IsDeprecated, v.DeprecationReason)
			r.WriteString("\n")
		}
	case TypeKindInputObject:
		fmt.Fprintf(r, "input %s {\n", t.Name)
		for _, f := range t.InputFields {
			r.description(f.Description, "  ")
			r.WriteString("  ")
			r.inputValue(f)
			r.WriteString("\n")
		}
	case TypeKindObject, TypeKindInterface:
		keyword := "type"
		if t.Kind == TypeKindInterface {
			keyword = "interface"
		}
		r.WriteString(keyword + " " + t.Name)
		if len(t.Interfaces) > 0 {
			r.WriteString(" implements " + strings.Join(t.Interfaces, " & "))
		}
		r.WriteString(" {\n")
		for _, f := range t.Fields {
			r.field(f)
		}
	}
	r.WriteString("}\n\n")
}

func (r *renderer) field(f *Field) {
	r.description(f.Description, "  ")
	r.WriteString("  " + f.Name)
	if len(f.Arguments) > 0 {
		r.WriteString("(")
		for i, arg := range f.Arguments {
			if i > 0 {
				r.WriteString(", ")
			}
			r.inputValue(arg)
		}
		r.WriteString(")")
	}
	r.WriteString(": " + f.Type.String())
	r.deprecation(f.IsDeprecated, f.DeprecationReason)
	r.WriteString("\n")
}

func (r *renderer) inputValue(v *InputValue) {
	r.WriteString(v.Name + ": " + v.Type.String())
	if v.DefaultValue != nil {
		r.WriteString(" = " + renderValue(v.DefaultValue))
	}
}

func (r *renderer) description(desc, indent string) {
	if desc == "" {
		return
	}
	r.WriteString(indent + `"""` + "\n")
	for _, line := range strings.Split(strings.ReplaceAll(desc, `"""`, `\"""`), "\n") {
		r.WriteString(indent + line + "\n")
	}
	r.WriteString(indent + `"""` + "\n")
}

func (r *renderer) deprecation(deprecated bool, reason string) {
	if !deprecated {
		return
	}
	r.WriteString(" @deprecated")
	if reason != "" {
		r.WriteString("(reason: " + strconv.Quote(reason) + ")")
	}
}

// renderValue renders a default value literal.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + renderValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(value)
}

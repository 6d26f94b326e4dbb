package executor

import (
	"context"
	"fmt"
	"math"
	"strconv"

	language "github.com/hanpama/membergraph/internal/language"
	schema "github.com/hanpama/membergraph/internal/schema"
)

// coercer turns request input into resolver arguments. Built-in scalars are
// coerced here, enum names are checked against the schema, and custom
// scalars go to Runtime.ParseLeafValue.
type coercer struct {
	ctx     context.Context
	runtime Runtime
	schema  *schema.Schema
}

func (c *coercer) coerceVariableValues(operation *language.OperationDefinition, provided map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	for _, def := range operation.VariableDefinitions {
		name, t := def.Variable, def.Type
		val, ok := provided[name]
		switch {
		case ok:
		case def.DefaultValue != nil:
			if err := c.checkLiteral(def.DefaultValue, typeRefFromAST(t)); err != nil {
				return nil, fmt.Errorf("default of variable $%s cannot be coerced: %v", name, err)
			}
			val, _ = literal(def.DefaultValue, nil)
		case t.NonNull:
			return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t)
		default:
			continue
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, t)
		}
		cv, err := c.coerceValue(val, typeRefFromAST(t))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, t, err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues coerces the arguments of one field. The first failing
// argument aborts coercion. An argument bound to an omitted variable counts
// as omitted.
func (c *coercer) coerceArgumentValues(fieldDef *schema.Field, arguments language.ArgumentList, variables map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, arg := range arguments {
		def := fieldDef.Argument(arg.Name)
		if def == nil {
			return nil, fmt.Errorf("unknown argument '%s' on field '%s'", arg.Name, fieldDef.Name)
		}
		if err := c.checkLiteral(arg.Value, def.Type); err != nil {
			return nil, fmt.Errorf("argument '%s' cannot be coerced: %v", arg.Name, err)
		}
		val, ok := literal(arg.Value, variables)
		if !ok {
			continue
		}
		cv, err := c.coerceValue(val, def.Type)
		if err != nil {
			return nil, fmt.Errorf("argument '%s' cannot be coerced: %v", arg.Name, err)
		}
		coerced[arg.Name] = cv
	}
	for _, def := range fieldDef.Arguments {
		if _, ok := coerced[def.Name]; ok {
			continue
		}
		switch {
		case def.DefaultValue != nil:
			cv, err := c.coerceValue(def.DefaultValue, def.Type)
			if err != nil {
				return nil, fmt.Errorf("default of argument '%s' cannot be coerced: %v", def.Name, err)
			}
			coerced[def.Name] = cv
		case schema.IsNonNull(def.Type):
			return nil, fmt.Errorf("argument '%s' of required type %s was not provided", def.Name, def.Type)
		}
	}
	return coerced, nil
}

// literal converts an AST value to plain Go values, substituting variables.
// ok is false when value is a variable missing from variables. Inside an
// input object such a field is left out; inside a list it becomes null.
func literal(value *language.Value, variables map[string]any) (v any, ok bool) {
	if value == nil {
		return nil, true
	}
	switch value.Kind {
	case language.Variable:
		v, ok = variables[value.Raw]
		return v, ok
	case language.IntValue:
		if n, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
			return n, true
		}
		// Out of int64 range. Still a valid Float; coerceInt rejects it.
		f, _ := strconv.ParseFloat(value.Raw, 64)
		return f, true
	case language.FloatValue:
		f, _ := strconv.ParseFloat(value.Raw, 64)
		return f, true
	case language.StringValue, language.BlockValue, language.EnumValue:
		return value.Raw, true
	case language.BooleanValue:
		return value.Raw == "true", true
	case language.ListValue:
		items := make([]any, len(value.Children))
		for i, child := range value.Children {
			items[i], _ = literal(child.Value, variables)
		}
		return items, true
	case language.ObjectValue:
		fields := make(map[string]any, len(value.Children))
		for _, child := range value.Children {
			if fv, present := literal(child.Value, variables); present {
				fields[child.Name] = fv
			}
		}
		return fields, true
	}
	return nil, true
}

// checkLiteral compares literal kinds with the input type they are written
// for. Enums take bare names only and String and ID take no bare names.
// Variables are not checked here; they arrive as plain JSON values.
func (c *coercer) checkLiteral(value *language.Value, target *schema.TypeRef) error {
	if value == nil || value.Kind == language.Variable || value.Kind == language.NullValue {
		return nil
	}
	if schema.IsNonNull(target) {
		return c.checkLiteral(value, schema.Unwrap(target))
	}
	if schema.IsList(target) {
		item := schema.Unwrap(target)
		if value.Kind != language.ListValue {
			return c.checkLiteral(value, item)
		}
		for _, child := range value.Children {
			if err := c.checkLiteral(child.Value, item); err != nil {
				return err
			}
		}
		return nil
	}
	name := schema.GetNamedType(target)
	switch name {
	case "String", "ID":
		if value.Kind == language.EnumValue {
			return fmt.Errorf("enum value %s cannot be used as %s", value.Raw, name)
		}
		return nil
	}
	t := c.schema.Types[name]
	if t == nil {
		return nil
	}
	switch t.Kind {
	case schema.TypeKindEnum:
		if value.Kind != language.EnumValue {
			return fmt.Errorf("value %s is not a member of enum %s", value.String(), name)
		}
	case schema.TypeKindInputObject:
		if value.Kind != language.ObjectValue {
			return nil
		}
		for _, child := range value.Children {
			if f := t.InputField(child.Name); f != nil {
				if err := c.checkLiteral(child.Value, f.Type); err != nil {
					return fmt.Errorf("field '%s.%s': %v", t.Name, f.Name, err)
				}
			}
		}
	}
	return nil
}

func (c *coercer) coerceValue(value any, target *schema.TypeRef) (any, error) {
	if schema.IsNonNull(target) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type %s", target)
		}
		return c.coerceValue(value, schema.Unwrap(target))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(target) {
		return c.coerceList(value, schema.Unwrap(target))
	}

	name := schema.GetNamedType(target)
	if coerce, ok := builtinScalars[name]; ok {
		return coerce(value)
	}
	t := c.schema.Types[name]
	if t == nil {
		return nil, fmt.Errorf("unknown input type %s", name)
	}
	switch t.Kind {
	case schema.TypeKindEnum:
		s, ok := value.(string)
		if !ok || !t.HasEnumValue(s) {
			return nil, fmt.Errorf("value %v is not a member of enum %s", value, name)
		}
		return c.runtime.ParseLeafValue(c.ctx, name, s)
	case schema.TypeKindScalar:
		return c.runtime.ParseLeafValue(c.ctx, name, value)
	case schema.TypeKindInputObject:
		return c.coerceInputObject(value, t)
	}
	return nil, fmt.Errorf("type %s cannot be used as input", name)
}

// coerceInputObject rejects undeclared fields and coerces the declared ones.
// An omitted field without a default is left out of the result.
func (c *coercer) coerceInputObject(value any, t *schema.Type) (any, error) {
	in, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object for %s, got %T", t.Name, value)
	}
	for name := range in {
		if t.InputField(name) == nil {
			return nil, fmt.Errorf("field '%s' is not defined by type %s", name, t.Name)
		}
	}
	out := make(map[string]any, len(t.InputFields))
	for _, f := range t.InputFields {
		raw, present := in[f.Name]
		if !present {
			if f.DefaultValue == nil {
				if schema.IsNonNull(f.Type) {
					return nil, fmt.Errorf("field '%s.%s' of required type %s was not provided", t.Name, f.Name, f.Type)
				}
				continue
			}
			raw = f.DefaultValue
		}
		cv, err := c.coerceValue(raw, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s.%s': %v", t.Name, f.Name, err)
		}
		out[f.Name] = cv
	}
	return out, nil
}

// coerceList accepts a single value where a list is expected.
func (c *coercer) coerceList(value any, item *schema.TypeRef) (any, error) {
	items, ok := value.([]any)
	if !ok {
		items = []any{value}
	}
	out := make([]any, len(items))
	for i, v := range items {
		cv, err := c.coerceValue(v, item)
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

var builtinScalars = map[string]func(any) (any, error){
	"Int":     coerceInt,
	"Float":   coerceFloat,
	"String":  coerceString,
	"Boolean": coerceBoolean,
	"ID":      coerceID,
}

// coerceInt accepts integral values in the signed 32-bit range.
func coerceInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return v, nil
		}
	case int32:
		return int(v), nil
	case int64:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case float32:
		if f := float64(v); f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			return int(v), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
}

func coerceBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

// coerceID accepts strings and integral numbers.
func coerceID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}

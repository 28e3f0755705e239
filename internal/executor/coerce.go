package executor

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	language "github.com/hanpama/pagegraph/internal/language"
	schema "github.com/hanpama/pagegraph/internal/schema"
)

// coerceVariables checks the provided variables against the operation's
// definitions. Absent variables take their default; absent variables without
// one stay absent unless their type is Non-Null.
func coerceVariables(sch *schema.Schema, op *language.OperationDefinition, provided map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		t := typeRef(def.Type)
		value, ok := provided[def.Variable]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				value, _ = literal(def.DefaultValue, nil)
			case t.IsNonNull():
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", def.Variable, t)
			default:
				continue
			}
		}
		c, err := coerceInput(sch, value, t)
		if err != nil {
			return nil, fmt.Errorf("variable $%s: %w", def.Variable, err)
		}
		out[def.Variable] = c
	}
	return out, nil
}

// coerceArguments builds the argument map of one field. Arguments that are
// neither given nor defaulted are left out.
func coerceArguments(sch *schema.Schema, def *schema.Field, given language.ArgumentList, variables map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(def.Arguments))
	for _, in := range def.Arguments {
		var (
			value any
			ok    bool
		)
		if arg := given.ForName(in.Name); arg != nil {
			value, ok = literal(arg.Value, variables)
		}
		if !ok {
			switch {
			case in.DefaultValue != nil:
				value = in.DefaultValue
			case in.Type.IsNonNull():
				return nil, fmt.Errorf("argument %s of required type %s was not provided", in.Name, in.Type)
			default:
				continue
			}
		}
		c, err := coerceInput(sch, value, in.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", in.Name, err)
		}
		out[in.Name] = c
	}
	return out, nil
}

// literal converts an AST value, substituting variables at any depth. ok is
// false for a variable that has no value; object fields holding one are
// dropped and list items become null.
func literal(v *language.Value, variables map[string]any) (any, bool) {
	switch v.Kind {
	case language.Variable:
		value, ok := variables[v.Raw]
		return value, ok
	case language.IntValue:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n, true
		}
		return v.Raw, true
	case language.FloatValue:
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
			return f, true
		}
		return v.Raw, true
	case language.StringValue, language.BlockValue, language.EnumValue:
		return v.Raw, true
	case language.BooleanValue:
		return v.Raw == "true", true
	case language.NullValue:
		return nil, true
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i], _ = literal(c.Value, variables)
		}
		return out, true
	case language.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			if item, ok := literal(c.Value, variables); ok {
				out[c.Name] = item
			}
		}
		return out, true
	}
	return nil, false
}

// coerceInput checks value against an input type and normalizes it: Int to
// int, Float to float64, input objects with their defaults applied. Custom
// scalars pass through for the runtime to interpret.
func coerceInput(sch *schema.Schema, value any, t *schema.TypeRef) (any, error) {
	if t.IsNonNull() {
		if value == nil {
			return nil, fmt.Errorf("null given for %s", t)
		}
		return coerceInput(sch, value, t.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if t.Kind == schema.TypeRefKindList {
		items, ok := value.([]any)
		if !ok {
			items = []any{value}
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := coerceInput(sch, item, t.OfType)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}

	switch t.Named {
	case "Int":
		n, err := coerceInt(value)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "Float":
		if f, ok := value.(float64); ok {
			return f, nil
		}
		if n, err := coerceInt(value); err == nil {
			return float64(n), nil
		}
		return nil, fmt.Errorf("Float cannot represent %v", value)
	case "String":
		if str, ok := value.(string); ok {
			return str, nil
		}
		return nil, fmt.Errorf("String cannot represent %v", value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %v", value)
	case "ID":
		if str, ok := value.(string); ok {
			return str, nil
		}
		if n, err := coerceInt(value); err == nil {
			return strconv.Itoa(n), nil
		}
		return nil, fmt.Errorf("ID cannot represent %v", value)
	}

	def := sch.Types[t.Named]
	if def == nil {
		return nil, fmt.Errorf("unknown input type %s", t.Named)
	}
	switch def.Kind {
	case schema.TypeKindEnum:
		name, ok := value.(string)
		if !ok || !slices.ContainsFunc(def.EnumValues, func(ev *schema.EnumValue) bool { return ev.Name == name }) {
			return nil, fmt.Errorf("%v is not a value of %s", value, def.Name)
		}
		return name, nil
	case schema.TypeKindInputObject:
		return coerceInputObject(sch, def, value)
	}
	return value, nil
}

func coerceInputObject(sch *schema.Schema, def *schema.Type, value any) (any, error) {
	given, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object, got %T", def.Name, value)
	}
	for name := range given {
		if !slices.ContainsFunc(def.InputFields, func(f *schema.InputValue) bool { return f.Name == name }) {
			return nil, fmt.Errorf("%s has no field %s", def.Name, name)
		}
	}
	out := make(map[string]any, len(def.InputFields))
	for _, f := range def.InputFields {
		v, ok := given[f.Name]
		if !ok {
			switch {
			case f.DefaultValue != nil:
				v = f.DefaultValue
			case f.Type.IsNonNull():
				return nil, fmt.Errorf("field %s.%s of required type %s was not provided", def.Name, f.Name, f.Type)
			default:
				continue
			}
		}
		c, err := coerceInput(sch, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		out[f.Name] = c
	}
	return out, nil
}

// coerceInt accepts Go integers and integral floats, as decoded from JSON
// variables.
func coerceInt(value any) (int, error) {
	var n int64
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("Int cannot represent %v", value)
		}
		n = int64(v)
	default:
		return 0, fmt.Errorf("Int cannot represent %v", value)
	}
	if n < math.MinInt || n > math.MaxInt {
		return 0, fmt.Errorf("Int cannot represent %v", value)
	}
	return int(n), nil
}

// typeRef converts an AST type reference.
func typeRef(t *language.Type) *schema.TypeRef {
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRef(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		return schema.NonNullType(ref)
	}
	return ref
}

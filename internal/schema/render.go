package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render produces client-facing SDL from the Schema. Prelude definitions and
// the batch directive are omitted. Types and directives are sorted by name.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	w := &sdlWriter{}

	for _, name := range sortedKeys(s.Types) {
		typ := s.Types[name]
		if typ.BuiltIn {
			continue
		}
		w.typeDef(typ)
	}
	for _, name := range sortedKeys(s.Directives) {
		d := s.Directives[name]
		if d.BuiltIn || d.Name == BatchDirective {
			continue
		}
		w.directiveDef(d)
	}

	return strings.TrimRight(w.String(), "\n") + "\n"
}

type sdlWriter struct {
	strings.Builder
}

func (w *sdlWriter) typeDef(t *Type) {
	w.description("", t.Description)
	switch t.Kind {
	case TypeKindScalar:
		w.printf("scalar %s", t.Name)
		if t.SpecifiedByURL != nil {
			w.printf(" @specifiedBy(url: %s)", strconv.Quote(*t.SpecifiedByURL))
		}
		w.WriteString("\n\n")
	case TypeKindObject, TypeKindInterface:
		keyword := "type"
		if t.Kind == TypeKindInterface {
			keyword = "interface"
		}
		w.printf("%s %s", keyword, t.Name)
		if len(t.Interfaces) > 0 {
			w.printf(" implements %s", strings.Join(t.Interfaces, " & "))
		}
		w.WriteString(" {\n")
		for _, f := range t.Fields {
			w.description("  ", f.Description)
			w.printf("  %s%s: %s", f.Name, w.arguments(f.Arguments), f.Type)
			w.deprecated(f.IsDeprecated, f.DeprecationReason)
			w.WriteString("\n")
		}
		w.WriteString("}\n\n")
	case TypeKindUnion:
		w.printf("union %s = %s\n\n", t.Name, strings.Join(t.PossibleTypes, " | "))
	case TypeKindEnum:
		w.printf("enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			w.description("  ", v.Description)
			w.printf("  %s", v.Name)
			w.deprecated(v.IsDeprecated, v.DeprecationReason)
			w.WriteString("\n")
		}
		w.WriteString("}\n\n")
	case TypeKindInputObject:
		w.printf("input %s", t.Name)
		if t.OneOf {
			w.WriteString(" @oneOf")
		}
		w.WriteString(" {\n")
		for _, in := range t.InputFields {
			w.description("  ", in.Description)
			w.printf("  %s", inputValue(in))
			w.deprecated(in.IsDeprecated, in.DeprecationReason)
			w.WriteString("\n")
		}
		w.WriteString("}\n\n")
	}
}

func (w *sdlWriter) directiveDef(d *Directive) {
	w.description("", d.Description)
	w.printf("directive @%s%s", d.Name, w.arguments(d.Arguments))
	if d.IsRepeatable {
		w.WriteString(" repeatable")
	}
	w.printf(" on %s\n\n", strings.Join(d.Locations, " | "))
}

func (w *sdlWriter) arguments(args []*InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = inputValue(arg)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (w *sdlWriter) description(indent, desc string) {
	if desc == "" {
		return
	}
	desc = strings.ReplaceAll(desc, `"""`, `\"""`)
	if !strings.Contains(desc, "\n") {
		w.printf("%s\"\"\"%s\"\"\"\n", indent, desc)
		return
	}
	w.printf("%s\"\"\"\n", indent)
	for _, line := range strings.Split(desc, "\n") {
		w.printf("%s%s\n", indent, line)
	}
	w.printf("%s\"\"\"\n", indent)
}

func (w *sdlWriter) deprecated(is bool, reason string) {
	if !is {
		return
	}
	w.WriteString(" @deprecated")
	if reason != "" {
		w.printf("(reason: %s)", strconv.Quote(reason))
	}
}

func (w *sdlWriter) printf(format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

func inputValue(in *InputValue) string {
	s := in.Name + ": " + in.Type.String()
	switch {
	case in.DefaultLiteral != "":
		s += " = " + in.DefaultLiteral
	case in.DefaultValue != nil:
		s += " = " + renderValue(in.DefaultValue)
	}
	return s
}

// String renders the reference in SDL notation, e.g. [ID!]!.
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	default:
		return t.Named
	}
}

// renderValue renders a Go default value as a GraphQL literal. Strings are
// quoted, so enum defaults need DefaultLiteral.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		parts := make([]string, 0, len(v))
		for _, k := range sortedKeys(v) {
			parts = append(parts, k+": "+renderValue(v[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

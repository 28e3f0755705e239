// Package introspection answers __schema and __type queries on top of another
// executor.Runtime.
package introspection

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	executor "github.com/hanpama/pagegraph/internal/executor"
	schema "github.com/hanpama/pagegraph/internal/schema"
)

// Runtime resolves introspection fields and delegates everything else to the
// wrapped runtime.
type Runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

var _ executor.Runtime = (*Runtime)(nil)

// Wrap extends sch with the introspection types. Execute against Schema(),
// not sch.
func Wrap(base executor.Runtime, sch *schema.Schema) *Runtime {
	return &Runtime{base: base, schema: extend(sch)}
}

// Schema returns the extended schema.
func (r *Runtime) Schema() *schema.Schema { return r.schema }

type operationScope interface {
	BeginOperation(ctx context.Context) (context.Context, func() int)
}

// BeginOperation forwards to the wrapped runtime when it scopes operations.
func (r *Runtime) BeginOperation(ctx context.Context) (context.Context, func() int) {
	if s, ok := r.base.(operationScope); ok {
		return s.BeginOperation(ctx)
	}
	return ctx, func() int { return 0 }
}

func (r *Runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		return r.schemaField(src, field)
	case *schema.Type:
		return r.typeField(src, field, args)
	case *schema.TypeRef:
		return r.typeRefField(src, field, args)
	case *schema.Field:
		return fieldField(src, field, args)
	case *schema.InputValue:
		return inputValueField(src, field)
	case *schema.EnumValue:
		return enumValueField(src, field)
	case *schema.Directive:
		return directiveField(src, field, args)
	}
	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if t, ok := r.schema.Types[name]; ok {
				return t, nil
			}
			return nil, nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

// SerializeLeafValue handles the introspection enums itself and unwraps
// optional strings before delegating.
func (r *Runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if strings.HasPrefix(typ, "__") {
		name := fmt.Sprint(value)
		if t := r.schema.Types[typ]; t != nil && slices.ContainsFunc(t.EnumValues, func(ev *schema.EnumValue) bool { return ev.Name == name }) {
			return name, nil
		}
		return nil, fmt.Errorf("%s: invalid value %q", typ, name)
	}
	if s, ok := value.(*string); ok {
		value = *s
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

func (r *Runtime) schemaField(s *schema.Schema, field string) (any, error) {
	switch field {
	case "description":
		return optional(s.Description), nil
	case "types":
		return sorted(mapValues(s.Types), func(t *schema.Type) string { return t.Name }), nil
	case "queryType":
		return s.GetQueryType(), nil
	case "mutationType":
		return nilIfAbsent(s.GetMutationType()), nil
	case "subscriptionType":
		return nilIfAbsent(s.GetSubscriptionType()), nil
	case "directives":
		return sorted(mapValues(s.Directives), func(d *schema.Directive) string { return d.Name }), nil
	}
	return nil, unknown("__Schema", field)
}

func (r *Runtime) typeField(t *schema.Type, field string, args map[string]any) (any, error) {
	switch field {
	case "kind":
		return string(t.Kind), nil
	case "name":
		return t.Name, nil
	case "description":
		return optional(t.Description), nil
	case "specifiedByURL":
		return t.SpecifiedByURL, nil
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, nil
		}
		return active(t.Fields, args, func(f *schema.Field) bool { return f.IsDeprecated }), nil
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, nil
		}
		return r.lookup(t.Interfaces), nil
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, nil
		}
		return r.lookup(t.PossibleTypes), nil
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, nil
		}
		return active(t.EnumValues, args, func(v *schema.EnumValue) bool { return v.IsDeprecated }), nil
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, nil
		}
		return active(t.InputFields, args, func(v *schema.InputValue) bool { return v.IsDeprecated }), nil
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, nil
		}
		return t.OneOf, nil
	case "ofType":
		return nil, nil
	}
	return nil, unknown("__Type", field)
}

// typeRefField answers __Type fields for a type reference. Wrappers report
// their own kind and ofType; named references read the named definition.
func (r *Runtime) typeRefField(tr *schema.TypeRef, field string, args map[string]any) (any, error) {
	if tr.Kind == schema.TypeRefKindNamed {
		def := r.schema.Types[tr.Named]
		if def == nil {
			return nil, fmt.Errorf("unknown type %s", tr.Named)
		}
		return r.typeField(def, field, args)
	}
	switch field {
	case "kind":
		return string(tr.Kind), nil
	case "ofType":
		return tr.OfType, nil
	case "name", "description", "specifiedByURL", "fields", "interfaces",
		"possibleTypes", "enumValues", "inputFields", "isOneOf":
		return nil, nil
	}
	return nil, unknown("__Type", field)
}

func (r *Runtime) lookup(names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if t := r.schema.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	return sorted(out, func(t *schema.Type) string { return t.Name })
}

func fieldField(f *schema.Field, field string, args map[string]any) (any, error) {
	switch field {
	case "name":
		return f.Name, nil
	case "description":
		return optional(f.Description), nil
	case "args":
		return active(f.Arguments, args, func(v *schema.InputValue) bool { return v.IsDeprecated }), nil
	case "type":
		return f.Type, nil
	case "isDeprecated":
		return f.IsDeprecated, nil
	case "deprecationReason":
		return deprecation(f.IsDeprecated, f.DeprecationReason), nil
	}
	return nil, unknown("__Field", field)
}

func inputValueField(v *schema.InputValue, field string) (any, error) {
	switch field {
	case "name":
		return v.Name, nil
	case "description":
		return optional(v.Description), nil
	case "type":
		return v.Type, nil
	case "defaultValue":
		switch {
		case v.DefaultLiteral != "":
			return v.DefaultLiteral, nil
		case v.DefaultValue != nil:
			return fmt.Sprint(v.DefaultValue), nil
		}
		return nil, nil
	case "isDeprecated":
		return v.IsDeprecated, nil
	case "deprecationReason":
		return deprecation(v.IsDeprecated, v.DeprecationReason), nil
	}
	return nil, unknown("__InputValue", field)
}

func enumValueField(v *schema.EnumValue, field string) (any, error) {
	switch field {
	case "name":
		return v.Name, nil
	case "description":
		return optional(v.Description), nil
	case "isDeprecated":
		return v.IsDeprecated, nil
	case "deprecationReason":
		return deprecation(v.IsDeprecated, v.DeprecationReason), nil
	}
	return nil, unknown("__EnumValue", field)
}

func directiveField(d *schema.Directive, field string, args map[string]any) (any, error) {
	switch field {
	case "name":
		return d.Name, nil
	case "description":
		return optional(d.Description), nil
	case "isRepeatable":
		return d.IsRepeatable, nil
	case "locations":
		locs := append([]string{}, d.Locations...)
		sort.Strings(locs)
		return locs, nil
	case "args":
		return active(d.Arguments, args, func(v *schema.InputValue) bool { return v.IsDeprecated }), nil
	}
	return nil, unknown("__Directive", field)
}

func unknown(typ, field string) error {
	return fmt.Errorf("no resolver for %s.%s", typ, field)
}

// active drops deprecated items unless includeDeprecated is set. Order is
// kept as declared.
func active[T any](items []T, args map[string]any, deprecated func(T) bool) []T {
	if include, _ := args["includeDeprecated"].(bool); include {
		return append([]T{}, items...)
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !deprecated(it) {
			out = append(out, it)
		}
	}
	return out
}

func sorted[T any](items []T, key func(T) string) []T {
	sort.Slice(items, func(i, j int) bool { return key(items[i]) < key(items[j]) })
	return items
}

func mapValues[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deprecation(deprecated bool, reason string) any {
	if !deprecated {
		return nil
	}
	return reason
}

func nilIfAbsent(t *schema.Type) any {
	if t == nil {
		return nil
	}
	return t
}

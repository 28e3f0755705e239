package introspection

import (
	schema "github.com/hanpama/pagegraph/internal/schema"
)

// extend returns a copy of original with the introspection types registered
// and __schema and __type added to the query type. original is not modified.
func extend(original *schema.Schema) *schema.Schema {
	ext := &schema.Schema{
		QueryType:        original.QueryType,
		MutationType:     original.MutationType,
		SubscriptionType: original.SubscriptionType,
		Types:            make(map[string]*schema.Type, len(original.Types)+len(metaTypes)),
		Directives:       original.Directives,
		Description:      original.Description,
		Document:         original.Document,
	}
	for name, t := range original.Types {
		ext.Types[name] = t
	}
	for _, build := range metaTypes {
		t := build()
		ext.Types[t.Name] = t
	}

	if q := original.GetQueryType(); q != nil {
		cp := *q
		cp.Fields = append(append([]*schema.Field(nil), q.Fields...),
			field("__schema", nonNull(named("__Schema"))),
			&schema.Field{
				Name: "__type",
				Type: named("__Type"),
				Arguments: []*schema.InputValue{
					{Name: "name", Type: nonNull(named("String"))},
				},
			},
		)
		ext.Types[cp.Name] = &cp
	}
	return ext
}

var metaTypes = []func() *schema.Type{
	func() *schema.Type {
		return object("__Schema",
			field("description", named("String")),
			field("types", nonNullList("__Type")),
			field("queryType", nonNull(named("__Type"))),
			field("mutationType", named("__Type")),
			field("subscriptionType", named("__Type")),
			field("directives", nonNullList("__Directive")),
		)
	},
	func() *schema.Type {
		return object("__Type",
			field("kind", nonNull(named("__TypeKind"))),
			field("name", named("String")),
			field("description", named("String")),
			field("specifiedByURL", named("String")),
			deprecatable(field("fields", list("__Field"))),
			field("interfaces", list("__Type")),
			field("possibleTypes", list("__Type")),
			deprecatable(field("enumValues", list("__EnumValue"))),
			deprecatable(field("inputFields", list("__InputValue"))),
			field("ofType", named("__Type")),
			field("isOneOf", named("Boolean")),
		)
	},
	func() *schema.Type {
		return object("__Field",
			field("name", nonNull(named("String"))),
			field("description", named("String")),
			deprecatable(field("args", nonNullList("__InputValue"))),
			field("type", nonNull(named("__Type"))),
			field("isDeprecated", nonNull(named("Boolean"))),
			field("deprecationReason", named("String")),
		)
	},
	func() *schema.Type {
		return object("__InputValue",
			field("name", nonNull(named("String"))),
			field("description", named("String")),
			field("type", nonNull(named("__Type"))),
			field("defaultValue", named("String")),
			field("isDeprecated", nonNull(named("Boolean"))),
			field("deprecationReason", named("String")),
		)
	},
	func() *schema.Type {
		return object("__EnumValue",
			field("name", nonNull(named("String"))),
			field("description", named("String")),
			field("isDeprecated", nonNull(named("Boolean"))),
			field("deprecationReason", named("String")),
		)
	},
	func() *schema.Type {
		return object("__Directive",
			field("name", nonNull(named("String"))),
			field("description", named("String")),
			field("isRepeatable", nonNull(named("Boolean"))),
			field("locations", nonNullList("__DirectiveLocation")),
			deprecatable(field("args", nonNullList("__InputValue"))),
		)
	},
	func() *schema.Type {
		return enum("__TypeKind",
			"SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL")
	},
	func() *schema.Type {
		return enum("__DirectiveLocation",
			"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
			"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
			"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
			"INPUT_FIELD_DEFINITION")
	},
}

func object(name string, fields ...*schema.Field) *schema.Type {
	return &schema.Type{Name: name, Kind: schema.TypeKindObject, Fields: fields, BuiltIn: true}
}

func enum(name string, values ...string) *schema.Type {
	t := &schema.Type{Name: name, Kind: schema.TypeKindEnum, BuiltIn: true}
	for _, v := range values {
		t.EnumValues = append(t.EnumValues, &schema.EnumValue{Name: v})
	}
	return t
}

func field(name string, typ *schema.TypeRef) *schema.Field {
	return &schema.Field{Name: name, Type: typ}
}

// deprecatable adds the includeDeprecated argument to f.
func deprecatable(f *schema.Field) *schema.Field {
	f.Arguments = append(f.Arguments, &schema.InputValue{
		Name:           "includeDeprecated",
		Type:           named("Boolean"),
		DefaultValue:   false,
		DefaultLiteral: "false",
	})
	return f
}

func named(name string) *schema.TypeRef { return schema.NamedType(name) }
func nonNull(t *schema.TypeRef) *schema.TypeRef { return schema.NonNullType(t) }

func list(name string) *schema.TypeRef { return schema.ListType(nonNull(named(name))) }

func nonNullList(name string) *schema.TypeRef { return nonNull(list(name)) }

package executor

import (
	"context"
	"reflect"

	language "github.com/hanpama/pagegraph/internal/language"
	schema "github.com/hanpama/pagegraph/internal/schema"
)

// Executor runs validated documents against one schema and runtime.
type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// executionState is everything one operation accumulates while it runs.
type executionState struct {
	ctx       context.Context
	runtime   Runtime
	schema    *schema.Schema
	document  *language.QueryDocument
	variables map[string]any
	errors    []GraphQLError

	// queue holds the async fields of the next depth.
	queue []pendingField
	// nullified lists the paths a Non-Null violation turned into null.
	// Nothing at or below them is resolved or written again.
	nullified []Path
	// nullable is the path of the nearest nullable position enclosing the
	// value being completed. It is nil at the root.
	nullable Path
}

// pendingField is an async field waiting for its depth's batch.
type pendingField struct {
	task   AsyncResolveTask
	path   Path
	typ    *schema.TypeRef
	fields []*language.Field
	// bubble is where a Non-Null violation of the field lands.
	bubble Path
}

// pending marks a response key whose value arrives with a later batch.
type pending struct{}

// ExecuteRequest runs the operation named operationName, or the only
// operation of document when the name is empty. initialValue is the source
// of the root fields.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := language.Operation(document, operationName)
	if operation == nil {
		if operationName == "" {
			return requestError("operation name is required when the document has %d operations", len(document.Operations))
		}
		return requestError("unknown operation %q", operationName)
	}

	variables, err := coerceVariables(e.schema, operation, variableValues)
	if err != nil {
		return requestError("%v", err)
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	case language.Subscription:
		rootType = e.schema.GetSubscriptionType()
	default:
		return requestError("unsupported operation type: %s", operation.Operation)
	}
	if rootType == nil {
		return requestError("schema has no root type for %s operations", operation.Operation)
	}

	s := &executionState{
		ctx:       ctx,
		runtime:   e.runtime,
		schema:    e.schema,
		document:  document,
		variables: variables,
	}
	data := s.executeSelectionSet(rootType, s.collectFields(rootType, operation.SelectionSet), initialValue, nil)
	for len(s.queue) > 0 {
		if err := ctx.Err(); err != nil {
			s.abandon(data, err)
			break
		}
		s.resolveDepth(data)
	}

	if s.pruned(nil) {
		return &ExecutionResult{Errors: s.errors}
	}
	return &ExecutionResult{Data: data, Errors: s.errors}
}

// executeSelectionSet executes the grouped fields of one object. Async fields
// are queued and left as placeholders. It returns nil when a Non-Null field
// of the object is null.
func (s *executionState) executeSelectionSet(objectType *schema.Type, groups []fieldGroup, source any, path Path) map[string]any {
	out := make(map[string]any, len(groups))
	for _, g := range groups {
		name := g.fields[0].Name
		if name == "__typename" {
			out[g.key] = objectType.Name
			continue
		}
		fieldPath := path.With(g.key)
		def := objectType.Field(name)
		if def == nil {
			s.errorf(fieldPath, "Cannot query field '%s' on type '%s'", name, objectType.Name)
			out[g.key] = nil
			continue
		}
		v := s.executeField(objectType, def, g.fields, source, fieldPath)
		if isNullish(v) {
			if def.Type.IsNonNull() {
				s.nullify(path)
				return nil
			}
			v = nil
		}
		out[g.key] = v
	}
	return out
}

func (s *executionState) executeField(parent *schema.Type, def *schema.Field, fields []*language.Field, source any, path Path) any {
	args, err := coerceArguments(s.schema, def, fields[0].Arguments, s.variables)
	if err != nil {
		s.addError(path, err.Error())
		return s.completeValue(def.Type, fields, nil, path)
	}
	task := AsyncResolveTask{ObjectType: parent.Name, Field: def.Name, Source: source, Args: args}
	if def.Async {
		s.queue = append(s.queue, pendingField{
			task:   task,
			path:   path,
			typ:    def.Type,
			fields: fields,
			bubble: s.nullable,
		})
		return pending{}
	}
	v, err := s.runtime.ResolveSync(s.ctx, task.ObjectType, task.Field, source, args)
	if err != nil {
		s.addError(path, err.Error())
		v = nil
	}
	return s.completeValue(def.Type, fields, v, path)
}

// completeValue shapes a resolved value after its field type. A null that
// the type does not allow is reported once and returned as nil for the
// caller to propagate.
func (s *executionState) completeValue(t *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if t.IsNonNull() {
		if isNullish(result) {
			if !s.hasErrorAt(path) {
				s.errorf(path, "Cannot return null for non-nullable field %s", path)
			}
			return nil
		}
		return s.completeInner(t.OfType, fields, result, path)
	}
	if isNullish(result) {
		return nil
	}

	saved := s.nullable
	s.nullable = path
	defer func() { s.nullable = saved }()
	v := s.completeInner(t, fields, result, path)
	if isNullish(v) {
		s.nullify(path)
		return nil
	}
	return v
}

func (s *executionState) completeInner(t *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if t.Kind == schema.TypeRefKindList {
		return s.completeList(t.OfType, fields, result, path)
	}
	def := s.schema.Types[t.Named]
	if def == nil {
		s.errorf(path, "Unknown type: %s", t.Named)
		return nil
	}
	switch def.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := s.runtime.SerializeLeafValue(s.ctx, def.Name, result)
		if err != nil {
			s.addError(path, err.Error())
			return nil
		}
		return v
	case schema.TypeKindObject:
		return s.completeObject(def, fields, result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		name, err := s.runtime.ResolveType(s.ctx, def.Name, result)
		if err != nil {
			s.addError(path, err.Error())
			return nil
		}
		obj := s.schema.Types[name]
		if obj == nil || obj.Kind != schema.TypeKindObject {
			s.errorf(path, "Abstract type %s must resolve to an Object type at runtime. Got: %s", def.Name, name)
			return nil
		}
		return s.completeObject(obj, fields, result, path)
	}
	s.errorf(path, "Cannot complete value of unexpected type: %s", def.Kind)
	return nil
}

func (s *executionState) completeObject(obj *schema.Type, fields []*language.Field, result any, path Path) any {
	sets := make([]language.SelectionSet, len(fields))
	for i, f := range fields {
		sets[i] = f.SelectionSet
	}
	if out := s.executeSelectionSet(obj, s.collectFields(obj, sets...), result, path); out != nil {
		return out
	}
	return nil
}

func (s *executionState) completeList(item *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		s.errorf(path, "Expected a list for %s, got %T", path, result)
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		v := s.completeValue(item, fields, rv.Index(i).Interface(), path.With(i))
		if isNullish(v) {
			if item.IsNonNull() {
				return nil
			}
			v = nil
		}
		out[i] = v
	}
	return out
}

// isNullish reports whether v is nil, including typed nil pointers, maps,
// slices and interfaces.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

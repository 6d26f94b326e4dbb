package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	gqlerrors "github.com/hanpama/membergraph/internal/gqlerrors"
	language "github.com/hanpama/membergraph/internal/language"
	schema "github.com/hanpama/membergraph/internal/schema"
)

type Path []any

type NodeID uint64

var errMissingResult = errors.New("runtime returned no result for field")

// executionState holds the state during query execution
type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	context        context.Context
	coercer        *coercer
	asyncTaskGroup []asyncTask
	errors         gqlerrors.ErrorList
	// data is the response tree; async placeholders are replaced in place.
	data map[string]any
	// dataNull is set once a null reached the root.
	dataNull bool
	nextID   uint64
}

// asyncTask represents a pending async field resolution
type asyncTask struct {
	ID           NodeID
	Task         AsyncResolveTask
	ResponsePath Path
	// Boundary is the nearest nullable position enclosing the field. A
	// Non-Null violation of the field writes null there; an empty boundary
	// means the root.
	Boundary  Path
	FieldType *schema.TypeRef
	Fields    []*language.Field
}

type asyncPending struct{}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// Schema returns the schema the executor was built with.
func (e *Executor) Schema() *schema.Schema { return e.schema }

func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := getOperation(document, operationName)
	if operation == nil {
		if operationName != "" {
			return requestError(gqlerrors.ValidationFailed, fmt.Sprintf("Unknown operation named %q.", operationName))
		}
		return requestError(gqlerrors.ValidationFailed, "operation not found")
	}

	c := &coercer{ctx: ctx, runtime: e.runtime, schema: e.schema}
	coercedVariableValues, err := c.coerceVariableValues(operation, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: gqlerrors.ErrorList{gqlerrors.Wrap(gqlerrors.ArgumentCoercionFailed, err)}}
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	default:
		return requestError(gqlerrors.ValidationFailed, fmt.Sprintf("unsupported operation type: %s", operation.Operation))
	}
	if rootType == nil {
		return requestError(gqlerrors.ValidationFailed, fmt.Sprintf("root type not found for %s operation", operation.Operation))
	}

	state := &executionState{
		runtime:        e.runtime,
		schema:         e.schema,
		document:       document,
		variableValues: coercedVariableValues,
		context:        ctx,
		coercer:        c,
		errors:         gqlerrors.ErrorList{},
		nextID:         1,
	}

	if operation.Operation == language.Mutation {
		state.executeSerially(rootType, operation.SelectionSet, initialValue)
	} else {
		state.executeRoot(rootType, operation.SelectionSet, initialValue)
	}

	result := &ExecutionResult{Errors: state.errors, executed: true}
	if !state.dataNull {
		result.Data = state.data
	}
	return result
}

// executeRoot expands the root selection set and drains async work depth by depth.
func (s *executionState) executeRoot(rootType *schema.Type, selectionSet language.SelectionSet, rootValue any) {
	data := executeSelectionSet(s, rootType, selectionSet, rootValue, Path{}, Path{})
	if data == nil {
		s.dataNull = true
		return
	}
	s.data = data
	s.drain()
}

// executeSerially runs root fields one at a time. Each field, including every
// async descendant, completes before the next one is resolved.
func (s *executionState) executeSerially(rootType *schema.Type, selectionSet language.SelectionSet, rootValue any) {
	s.data = make(map[string]any)
	for _, collected := range collectFields(s, rootType, selectionSet).orderedFields() {
		value, include, bubble := executeCollectedField(s, rootType, rootValue, collected, Path{}, Path{})
		if bubble {
			s.dataNull = true
			return
		}
		if !include {
			continue
		}
		s.data[collected.ResponseName] = value
		s.drain()
		if s.dataNull {
			return
		}
	}
}

// drain flushes async tasks until none remain.
func (s *executionState) drain() {
	for len(s.asyncTaskGroup) > 0 && !s.dataNull {
		filtered, results := flushAsyncTasks(s)
		for i, at := range filtered {
			if s.dataNull {
				return
			}
			// an earlier result in this batch may have nulled an ancestor
			if !s.isLive(at) {
				continue
			}
			res := AsyncResolveResult{Error: errMissingResult}
			if i < len(results) {
				res = results[i]
			}
			completeAsyncField(s, at, res)
		}
	}
}

// executeSelectionSet executes a selection set without flushing. It returns
// nil when a Non-Null field of the object completed to null.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path, boundary Path) map[string]any {
	groupedFields := collectFields(state, objectType, selectionSet)
	resultMap := make(map[string]any, len(groupedFields.fields))

	for _, collected := range groupedFields.orderedFields() {
		value, include, bubble := executeCollectedField(state, objectType, objectValue, collected, path, boundary)
		if bubble {
			return nil
		}
		if include {
			resultMap[collected.ResponseName] = value
		}
	}

	return resultMap
}

// executeCollectedField executes one response key. include is false for
// unknown fields; bubble is true when a Non-Null field completed to null.
func executeCollectedField(state *executionState, objectType *schema.Type, objectValue any, collected collectedField, path Path, boundary Path) (value any, include, bubble bool) {
	fields := collected.Fields
	fieldPath := appendPath(path, collected.ResponseName)

	if fields[0].Name == "__typename" {
		return objectType.Name, true, false
	}

	fieldDef := objectType.Field(fields[0].Name)
	if fieldDef == nil {
		err := gqlerrors.New(gqlerrors.SchemaMismatch, fmt.Sprintf("Cannot query field '%s' on type '%s'", fields[0].Name, objectType.Name))
		state.addError(err, fieldPath)
		return nil, false, false
	}

	fieldResult := executeFieldGroup(state, objectType, fieldDef, objectValue, fields, fieldPath, boundary)
	if isNullish(fieldResult) {
		return nil, true, schema.IsNonNull(fieldDef.Type)
	}
	return fieldResult, true, false
}

func executeFieldGroup(state *executionState, objectType *schema.Type, fieldDef *schema.Field, objectValue any, fields []*language.Field, path Path, boundary Path) any {
	field := fields[0]

	argumentValues, err := state.coercer.coerceArgumentValues(fieldDef, field.Arguments, state.variableValues)
	if err != nil {
		// the resolver is never invoked with arguments it cannot accept
		state.addError(gqlerrors.Wrap(gqlerrors.ArgumentCoercionFailed, err), path)
		return nil
	}

	if !fieldDef.Async {
		resolvedValue := resolveSyncField(state, objectType.Name, field.Name, objectValue, argumentValues, path)
		return completeValue(state, fieldDef.Type, fields, resolvedValue, path, boundary)
	}

	id := NodeID(state.nextID)
	state.nextID++
	state.asyncTaskGroup = append(state.asyncTaskGroup, asyncTask{
		ID: id,
		Task: AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      field.Name,
			Source:     objectValue,
			Args:       argumentValues,
		},
		ResponsePath: path,
		Boundary:     boundary,
		FieldType:    fieldDef.Type,
		Fields:       fields,
	})
	return asyncPending{}
}

// flushAsyncTasks drops dead tasks, then resolves the rest in one batch.
func flushAsyncTasks(state *executionState) ([]asyncTask, []AsyncResolveResult) {
	filtered := make([]asyncTask, 0, len(state.asyncTaskGroup))
	for _, at := range state.asyncTaskGroup {
		if state.isLive(at) {
			filtered = append(filtered, at)
		}
	}
	state.asyncTaskGroup = nil
	if len(filtered) == 0 {
		return nil, nil
	}

	tasks := make([]AsyncResolveTask, len(filtered))
	for i, at := range filtered {
		tasks[i] = at.Task
	}
	results := state.runtime.BatchResolveAsync(state.context, tasks)
	return filtered, results
}

// isLive reports whether the task's placeholder is still reachable from the
// response root. Placeholders under a nulled ancestor are not.
func (s *executionState) isLive(at asyncTask) bool {
	if s.dataNull {
		return false
	}
	path := at.ResponsePath
	parent, ok := valueAtPath(s.data, path[:len(path)-1])
	if !ok {
		return false
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return false
	}
	key, _ := path[len(path)-1].(string)
	_, pending := m[key].(asyncPending)
	return pending
}

// completeAsyncField completes a single async result, with non-null propagation
func completeAsyncField(state *executionState, at asyncTask, res AsyncResolveResult) {
	path := at.ResponsePath

	if res.Error != nil {
		state.addError(gqlerrors.Wrap(gqlerrors.ResolverFailed, res.Error), path)
		if schema.IsNonNull(at.FieldType) {
			state.nullAt(at.Boundary)
			return
		}
		setValueAtPath(state.data, path, nil)
		return
	}

	completed := completeValue(state, at.FieldType, at.Fields, res.Value, path, at.Boundary)
	if isNullish(completed) {
		if schema.IsNonNull(at.FieldType) {
			state.nullAt(at.Boundary)
			return
		}
		setValueAtPath(state.data, path, nil)
		return
	}
	setValueAtPath(state.data, path, completed)
}

// nullAt writes null at a nullable position, or nulls data for the root.
func (s *executionState) nullAt(boundary Path) {
	if len(boundary) == 0 {
		s.dataNull = true
		return
	}
	setValueAtPath(s.data, boundary, nil)
}

// completeValue completes a value. boundary is the nearest nullable position
// enclosing path; a nullable fieldType moves it to path itself.
func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path, boundary Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(gqlerrors.New(gqlerrors.ResolverFailed, fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path))), path)
			}
			return nil
		}
		completed := completeInnerValue(state, schema.Unwrap(fieldType), fields, result, path, boundary)
		if isNullish(completed) {
			// Error already recorded at original path; propagate only
			return nil
		}
		return completed
	}

	if isNullish(result) {
		return nil
	}
	return completeInnerValue(state, fieldType, fields, result, path, path)
}

// completeInnerValue completes a non-null value of a list or named type.
func completeInnerValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path, boundary Path) any {
	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path, boundary)
	}
	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.addError(gqlerrors.New(gqlerrors.SchemaMismatch, fmt.Sprintf("Unknown type: %s", namedType)), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := state.runtime.SerializeLeafValue(state.context, namedType, result)
		if err != nil {
			state.addError(gqlerrors.Wrap(gqlerrors.ResolverFailed, err), path)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return completeObjectValue(state, typeObj, fields, result, path, boundary)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(state, namedType, fields, result, path, boundary)
	default:
		state.addError(gqlerrors.New(gqlerrors.SchemaMismatch, fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind)), path)
		return nil
	}
}

// completeListValue completes a list value
func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path, boundary Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			state.addError(gqlerrors.New(gqlerrors.ResolverFailed, fmt.Sprintf("Expected list value, got %T", result)), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		p := appendPath(path, i)
		v := completeValue(state, inner, fields, item, p, boundary)
		if schema.IsNonNull(inner) && isNullish(v) {
			// Propagate null to the list field; error already recorded by inner completion
			return nil
		}
		completed[i] = v
	}
	return completed
}

func completeObjectValue(state *executionState, objectType *schema.Type, fields []*language.Field, result any, path Path, boundary Path) any {
	sub := mergeSelectionSets(fields)
	return executeSelectionSet(state, objectType, sub, result, path, boundary)
}

func completeAbstractValue(state *executionState, abstractTypeName string, fields []*language.Field, result any, path Path, boundary Path) any {
	typeName, err := state.runtime.ResolveType(state.context, abstractTypeName, result)
	if err != nil {
		state.addError(gqlerrors.Wrap(gqlerrors.ResolverFailed, err), path)
		return nil
	}
	objectType := state.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		state.addError(gqlerrors.New(gqlerrors.SchemaMismatch, fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractTypeName, typeName)), path)
		return nil
	}
	return completeObjectValue(state, objectType, fields, result, path, boundary)
}

func pathToString(path Path) string {
	result := ""
	for i, elem := range path {
		if i > 0 {
			result += "."
		}
		switch v := elem.(type) {
		case string:
			result += v
		case int:
			result += fmt.Sprintf("[%d]", v)
		}
	}
	return result
}

func appendPath(path Path, elem any) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// getOperation retrieves the operation from the document
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" && len(document.Operations) == 1 {
		return document.Operations[0]
	}
	if operationName == "" {
		return nil
	}
	for _, op := range document.Operations {
		if op.Name == operationName {
			return op
		}
	}
	return nil
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return schema.ListType(typeRefFromAST(t.Elem))
	}
	return nil
}

// addError records err located at path.
func (state *executionState) addError(err *gqlerrors.Error, path Path) {
	state.errors = append(state.errors, err.WithPath([]any(path)))
}

// hasErrorAtPath reports whether an error with the given path already exists.
func (state *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range state.errors {
		if reflect.DeepEqual(err.Path, []any(path)) {
			return true
		}
	}
	return false
}

// resolveSyncField resolves a field synchronously
func resolveSyncField(state *executionState, objectType string, fieldName string, source any, args map[string]any, path Path) any {
	value, err := state.runtime.ResolveSync(state.context, objectType, fieldName, source, args)
	if err != nil {
		state.addError(gqlerrors.Wrap(gqlerrors.ResolverFailed, err), path)
		return nil
	}
	return value
}

// valueAtPath walks the response tree. It reports false when a segment is
// missing or null.
func valueAtPath(root map[string]any, path Path) (any, bool) {
	current := any(root)
	for _, elem := range path {
		switch e := elem.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok || m == nil {
				return nil, false
			}
			next, exists := m[e]
			if !exists || next == nil {
				return nil, false
			}
			current = next
		case int:
			slice, ok := current.([]any)
			if !ok || e < 0 || e >= len(slice) || slice[e] == nil {
				return nil, false
			}
			current = slice[e]
		default:
			return nil, false
		}
	}
	return current, true
}

// setValueAtPath writes value into an existing container. Missing
// intermediate segments leave the tree untouched.
func setValueAtPath(responseRoot map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	parent, ok := valueAtPath(responseRoot, path[:len(path)-1])
	if !ok {
		return
	}
	switch fe := path[len(path)-1].(type) {
	case string:
		if m, ok := parent.(map[string]any); ok {
			m[fe] = value
		}
	case int:
		if slice, ok := parent.([]any); ok && fe >= 0 && fe < len(slice) {
			slice[fe] = value
		}
	}
}

// isNullish returns true for nil interfaces and typed nils (map, ptr,
// interface). A nil slice is an empty list.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

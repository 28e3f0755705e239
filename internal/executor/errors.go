package executor

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Path is the response path of a value: response keys and list indices.
type Path []any

// With returns a copy of p extended by elem.
func (p Path) With(elem any) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, elem)
}

// HasPrefix reports whether p equals prefix or lies below it.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && slices.Equal(p[:len(prefix)], prefix)
}

// String renders p as pages.edges[0].node.
func (p Path) String() string {
	var b strings.Builder
	for _, elem := range p {
		if i, ok := elem.(int); ok {
			b.WriteString("[" + strconv.Itoa(i) + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		fmt.Fprint(&b, elem)
	}
	return b.String()
}

// GraphQLError is an error located at the response path of a field.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// ExecutionResult is the outcome of one operation. Data is nil when the
// operation could not start or a Non-Null root field came back null.
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// requestError is a result that never reached execution.
func requestError(format string, args ...any) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf(format, args...)}}}
}

func (s *executionState) addError(path Path, message string) {
	s.errors = append(s.errors, GraphQLError{Message: message, Path: slices.Clone(path)})
}

func (s *executionState) errorf(path Path, format string, args ...any) {
	s.addError(path, fmt.Sprintf(format, args...))
}

func (s *executionState) hasErrorAt(path Path) bool {
	return slices.ContainsFunc(s.errors, func(e GraphQLError) bool {
		return slices.Equal(e.Path, path)
	})
}

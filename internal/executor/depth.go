package executor

import (
	"fmt"
	"slices"
)

// resolveDepth hands every queued field to the runtime in one call and
// completes the results in queue order. Completion queues the next depth.
func (s *executionState) resolveDepth(data map[string]any) {
	queued := s.queue
	s.queue = nil

	live := make([]pendingField, 0, len(queued))
	for _, pf := range queued {
		if !s.pruned(pf.path) {
			live = append(live, pf)
		}
	}
	if len(live) == 0 {
		return
	}

	tasks := make([]AsyncResolveTask, len(live))
	for i, pf := range live {
		tasks[i] = pf.task
	}
	results := s.runtime.BatchResolveAsync(s.ctx, tasks)
	if len(results) != len(tasks) {
		err := fmt.Errorf("runtime returned %d results for %d tasks", len(results), len(tasks))
		results = make([]AsyncResolveResult, len(tasks))
		for i := range results {
			results[i].Error = err
		}
	}
	for i, pf := range live {
		s.completeQueued(data, pf, results[i])
	}
}

// abandon fails every queued field with cause without calling the runtime.
func (s *executionState) abandon(data map[string]any, cause error) {
	queued := s.queue
	s.queue = nil
	err := fmt.Errorf("execution aborted: %w", cause)
	for _, pf := range queued {
		s.completeQueued(data, pf, AsyncResolveResult{Error: err})
	}
}

func (s *executionState) completeQueued(data map[string]any, pf pendingField, res AsyncResolveResult) {
	if s.pruned(pf.path) {
		return
	}
	var v any
	if res.Error != nil {
		s.addError(pf.path, res.Error.Error())
	} else {
		s.nullable = pf.bubble
		v = s.completeValue(pf.typ, pf.fields, res.Value, pf.path)
		s.nullable = nil
	}
	if isNullish(v) {
		if pf.typ.IsNonNull() {
			s.nullify(pf.bubble)
			setAt(data, pf.bubble, nil)
			return
		}
		v = nil
	}
	setAt(data, pf.path, v)
}

func (s *executionState) nullify(path Path) {
	s.nullified = append(s.nullified, slices.Clone(path))
}

// pruned reports whether path lies at or below a nullified path.
func (s *executionState) pruned(path Path) bool {
	for _, n := range s.nullified {
		if path.HasPrefix(n) {
			return true
		}
	}
	return false
}

// setAt writes v at path inside data. Steps that no longer exist are
// ignored; the root itself is never replaced.
func setAt(data map[string]any, path Path, v any) {
	if len(path) == 0 {
		return
	}
	var cur any = data
	for _, step := range path[:len(path)-1] {
		switch c := cur.(type) {
		case map[string]any:
			cur = c[step.(string)]
		case []any:
			cur = c[step.(int)]
		default:
			return
		}
	}
	switch c := cur.(type) {
	case map[string]any:
		if c != nil {
			c[path[len(path)-1].(string)] = v
		}
	case []any:
		c[path[len(path)-1].(int)] = v
	}
}

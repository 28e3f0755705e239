package executor

import (
	language "github.com/hanpama/pagegraph/internal/language"
	schema "github.com/hanpama/pagegraph/internal/schema"
)

// fieldGroup is every selection of one response key.
type fieldGroup struct {
	key    string
	fields []*language.Field
}

// collectFields groups the fields that sets select on objectType by response
// key, in the order the keys first appear. Fragments apply when their type
// condition matches objectType. Each named fragment is expanded once.
func (s *executionState) collectFields(objectType *schema.Type, sets ...language.SelectionSet) []fieldGroup {
	var groups []fieldGroup
	index := map[string]int{}
	expanded := map[string]bool{}

	var walk func(set language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *language.Field:
				if !s.included(sel.Directives) {
					continue
				}
				key := language.ResponseKey(sel)
				if i, ok := index[key]; ok {
					groups[i].fields = append(groups[i].fields, sel)
					continue
				}
				index[key] = len(groups)
				groups = append(groups, fieldGroup{key: key, fields: []*language.Field{sel}})
			case *language.InlineFragment:
				if s.included(sel.Directives) && s.schema.DoesTypeApply(sel.TypeCondition, objectType) {
					walk(sel.SelectionSet)
				}
			case *language.FragmentSpread:
				if expanded[sel.Name] || !s.included(sel.Directives) {
					continue
				}
				expanded[sel.Name] = true
				def := s.document.Fragments.ForName(sel.Name)
				if def != nil && s.schema.DoesTypeApply(def.TypeCondition, objectType) {
					walk(def.SelectionSet)
				}
			}
		}
	}
	for _, set := range sets {
		walk(set)
	}
	return groups
}

// included evaluates @skip and @include.
func (s *executionState) included(directives language.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil && s.conditionTrue(d) {
		return false
	}
	if d := directives.ForName("include"); d != nil && !s.conditionTrue(d) {
		return false
	}
	return true
}

func (s *executionState) conditionTrue(d *language.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, _ := literal(arg.Value, s.variables)
	b, _ := v.(bool)
	return b
}

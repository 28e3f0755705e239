package cmsrt

import (
	"fmt"

	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/hanpama/pagegraph/internal/relay"
)

func argString(args map[string]any, name string) (string, bool) {
	s, ok := args[name].(string)
	return s, ok
}

func argStrings(args map[string]any, name string) []string {
	raw, _ := args[name].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argBool(args map[string]any, name string) *bool {
	if b, ok := args[name].(bool); ok {
		return &b
	}
	return nil
}

func argObject(args map[string]any, name string) map[string]any {
	m, _ := args[name].(map[string]any)
	return m
}

func pagination(args map[string]any) (offset, limit int, err error) {
	var a relay.Args
	if v, ok := args["first"]; ok && v != nil {
		n, ok := v.(int)
		if !ok {
			return 0, 0, fmt.Errorf("argument first must be an integer")
		}
		a.First = &n
	}
	if s, ok := argString(args, "after"); ok {
		a.After = &s
	}
	return a.Offsets()
}

func pageFilter(args map[string]any) (cms.PageFilter, error) {
	var f cms.PageFilter
	in := argObject(args, "filter")
	if in == nil {
		return f, nil
	}
	f.Search, _ = argString(in, "search")
	f.Slugs = argStrings(in, "slugs")
	for _, id := range argStrings(in, "pageTypes") {
		pk, err := relay.FromGlobalIDOf("PageType", id)
		if err != nil {
			return f, err
		}
		f.PageTypeIDs = append(f.PageTypeIDs, pk)
	}
	return f, nil
}

func attributeFilter(args map[string]any) cms.AttributeFilter {
	var f cms.AttributeFilter
	in := argObject(args, "filter")
	if in == nil {
		return f
	}
	f.Search, _ = argString(in, "search")
	f.Slugs = argStrings(in, "slugs")
	f.ValueRequired = argBool(in, "valueRequired")
	f.VisibleInStorefront = argBool(in, "visibleInStorefront")
	return f
}

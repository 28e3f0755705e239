package cms

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// ErrNotFound is returned by single-object store lookups.
var ErrNotFound = errors.New("cms: not found")

// NoLimit asks a list method for every row after offset. A limit of 0 returns
// no rows but still reports the total.
const NoLimit = -1

// Store is the persistence collaborator. Batch methods take distinct ids and
// return a map keyed by id; ids with no data are simply absent.
type Store interface {
	PagesByIDs(ctx context.Context, ids []int) (map[int]*Page, error)
	PageBySlug(ctx context.Context, slug string) (*Page, error)
	ListPages(ctx context.Context, filter PageFilter, offset, limit int) ([]*Page, int, error)

	PageTypesByIDs(ctx context.Context, ids []int) (map[int]*PageType, error)
	ListPageTypes(ctx context.Context, offset, limit int) ([]*PageType, int, error)

	SelectedAttributesByPageIDs(ctx context.Context, pageIDs []int) (map[int][]*SelectedAttribute, error)
	AttributesByPageTypeIDs(ctx context.Context, pageTypeIDs []int) (map[int][]*Attribute, error)
	UnassignedPageTypeAttributes(ctx context.Context, pageTypeID int, filter AttributeFilter, offset, limit int) ([]*Attribute, int, error)

	PageTranslations(ctx context.Context, keys []TranslationKey) (map[TranslationKey]*PageTranslation, error)
}

// PageFilter narrows ListPages. Zero fields do not filter.
type PageFilter struct {
	Search      string
	Slugs       []string
	PageTypeIDs []int
	// PublishedOnly hides pages that are not visible yet.
	PublishedOnly bool
}

// AttributeFilter narrows available attribute listings. Zero fields do not filter.
type AttributeFilter struct {
	Search              string
	Slugs               []string
	ValueRequired       *bool
	VisibleInStorefront *bool
}

// Match reports whether a passes the filter.
func (f AttributeFilter) Match(a *Attribute) bool {
	if f.Search != "" && !containsFold(a.Name, f.Search) && !containsFold(a.Slug, f.Search) {
		return false
	}
	if len(f.Slugs) > 0 && !slices.Contains(f.Slugs, a.Slug) {
		return false
	}
	if f.ValueRequired != nil && a.ValueRequired != *f.ValueRequired {
		return false
	}
	if f.VisibleInStorefront != nil && a.VisibleInStorefront != *f.VisibleInStorefront {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// AssembleSelected groups page attribute assignments into selected
// attributes per page. Assignments referring to unknown attributes are
// skipped, as are unknown value ids.
func AssembleSelected(assigned []*AssignedPageAttribute, attributes map[int]*Attribute, values map[int]*AttributeValue) map[int][]*SelectedAttribute {
	out := make(map[int][]*SelectedAttribute)
	for _, a := range assigned {
		attr, ok := attributes[a.AttributeID]
		if !ok {
			continue
		}
		sel := &SelectedAttribute{Attribute: attr, Values: []*AttributeValue{}}
		for _, id := range a.ValueIDs {
			if v, ok := values[id]; ok {
				sel.Values = append(sel.Values, v)
			}
		}
		out[a.PageID] = append(out[a.PageID], sel)
	}
	return out
}

// Window clips [offset, offset+limit) to n items. A negative limit means no
// upper bound.
func Window(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit >= 0 && limit < n-offset {
		end = offset + limit
	}
	return offset, end
}

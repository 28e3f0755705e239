// Package memstore is an in-memory cms.Store seeded from a fixture.
package memstore

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hanpama/pagegraph/internal/cms"
)

type Store struct {
	mu             sync.RWMutex
	pages          map[int]*cms.Page
	pageTypes      map[int]*cms.PageType
	attributes     map[int]*cms.Attribute
	values         map[int]*cms.AttributeValue
	attributePages []*cms.AttributePage
	assigned       []*cms.AssignedPageAttribute
	translations   map[cms.TranslationKey]*cms.PageTranslation

	// Now is used to decide whether a page is visible yet
	Now func() time.Time
}

var _ cms.Store = (*Store)(nil)

// New creates a store holding the contents of f.
func New(f *cms.Fixture) *Store {
	s := &Store{
		pages:        make(map[int]*cms.Page, len(f.Pages)),
		pageTypes:    make(map[int]*cms.PageType, len(f.PageTypes)),
		attributes:   make(map[int]*cms.Attribute, len(f.Attributes)),
		values:       make(map[int]*cms.AttributeValue, len(f.AttributeValues)),
		translations: make(map[cms.TranslationKey]*cms.PageTranslation, len(f.PageTranslations)),
		Now:          time.Now,
	}
	for _, p := range f.Pages {
		s.pages[p.ID] = p
	}
	for _, pt := range f.PageTypes {
		s.pageTypes[pt.ID] = pt
	}
	for _, a := range f.Attributes {
		s.attributes[a.ID] = a
	}
	for _, v := range f.AttributeValues {
		s.values[v.ID] = v
	}
	for _, t := range f.PageTranslations {
		s.translations[cms.TranslationKey{PageID: t.PageID, LanguageCode: t.LanguageCode}] = t
	}
	s.attributePages = slices.Clone(f.AttributePages)
	slices.SortStableFunc(s.attributePages, func(a, b *cms.AttributePage) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		return a.ID - b.ID
	})
	s.assigned = slices.Clone(f.AssignedPageAttributes)
	slices.SortFunc(s.assigned, func(a, b *cms.AssignedPageAttribute) int { return a.ID - b.ID })
	return s
}

// Open reads a JSON fixture from path.
func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fx, err := cms.ReadFixture(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(fx), nil
}

func (s *Store) PagesByIDs(ctx context.Context, ids []int) (map[int]*cms.Page, error) {
	return pick(ctx, &s.mu, s.pages, ids)
}

func (s *Store) PageBySlug(ctx context.Context, slug string) (*cms.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pages {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, cms.ErrNotFound
}

func (s *Store) ListPages(ctx context.Context, filter cms.PageFilter, offset, limit int) ([]*cms.Page, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.Now()
	var matched []*cms.Page
	for _, p := range s.pages {
		if filter.PublishedOnly && !p.VisibleAt(now) {
			continue
		}
		if len(filter.Slugs) > 0 && !slices.Contains(filter.Slugs, p.Slug) {
			continue
		}
		if len(filter.PageTypeIDs) > 0 && !slices.Contains(filter.PageTypeIDs, p.PageTypeID) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.Content), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, p)
	}
	slices.SortFunc(matched, func(a, b *cms.Page) int { return a.ID - b.ID })
	start, end := cms.Window(len(matched), offset, limit)
	return matched[start:end], len(matched), nil
}

func (s *Store) PageTypesByIDs(ctx context.Context, ids []int) (map[int]*cms.PageType, error) {
	return pick(ctx, &s.mu, s.pageTypes, ids)
}

func (s *Store) ListPageTypes(ctx context.Context, offset, limit int) ([]*cms.PageType, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*cms.PageType, 0, len(s.pageTypes))
	for _, pt := range s.pageTypes {
		all = append(all, pt)
	}
	slices.SortFunc(all, func(a, b *cms.PageType) int { return a.ID - b.ID })
	start, end := cms.Window(len(all), offset, limit)
	return all[start:end], len(all), nil
}

func (s *Store) SelectedAttributesByPageIDs(ctx context.Context, pageIDs []int) (map[int][]*cms.SelectedAttribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var assigned []*cms.AssignedPageAttribute
	for _, a := range s.assigned {
		if slices.Contains(pageIDs, a.PageID) {
			assigned = append(assigned, a)
		}
	}
	return cms.AssembleSelected(assigned, s.attributes, s.values), nil
}

func (s *Store) AttributesByPageTypeIDs(ctx context.Context, pageTypeIDs []int) (map[int][]*cms.Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]*cms.Attribute)
	for _, ap := range s.attributePages {
		if !slices.Contains(pageTypeIDs, ap.PageTypeID) {
			continue
		}
		if a, ok := s.attributes[ap.AttributeID]; ok {
			out[ap.PageTypeID] = append(out[ap.PageTypeID], a)
		}
	}
	return out, nil
}

func (s *Store) UnassignedPageTypeAttributes(ctx context.Context, pageTypeID int, filter cms.AttributeFilter, offset, limit int) ([]*cms.Attribute, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	assigned := make(map[int]bool)
	for _, ap := range s.attributePages {
		if ap.PageTypeID == pageTypeID {
			assigned[ap.AttributeID] = true
		}
	}
	var matched []*cms.Attribute
	for _, a := range s.attributes {
		if a.Type != cms.AttributeTypePage || assigned[a.ID] || !filter.Match(a) {
			continue
		}
		matched = append(matched, a)
	}
	slices.SortFunc(matched, func(a, b *cms.Attribute) int { return a.ID - b.ID })
	start, end := cms.Window(len(matched), offset, limit)
	return matched[start:end], len(matched), nil
}

func (s *Store) PageTranslations(ctx context.Context, keys []cms.TranslationKey) (map[cms.TranslationKey]*cms.PageTranslation, error) {
	return pick(ctx, &s.mu, s.translations, keys)
}

func pick[K comparable, V any](ctx context.Context, mu *sync.RWMutex, m map[K]V, keys []K) (map[K]V, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

package memstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(cms.DefaultFixture())
	s.Now = func() time.Time { return time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestPagesByIDs_OmitsUnknown(t *testing.T) {
	s := newStore(t)
	got, err := s.PagesByIDs(context.Background(), []int{3, 1, 99})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "about-us", got[1].Slug)
	assert.Equal(t, "spring-sale", got[3].Slug)
}

func TestPageBySlug(t *testing.T) {
	s := newStore(t)
	p, err := s.PageBySlug(context.Background(), "careers")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ID)

	_, err = s.PageBySlug(context.Background(), "nope")
	assert.ErrorIs(t, err, cms.ErrNotFound)
}

func TestListPages(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	all, total, err := s.ListPages(ctx, cms.PageFilter{}, 0, cms.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, all, 4)

	published, total, err := s.ListPages(ctx, cms.PageFilter{PublishedOnly: true}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, published, 1)
	assert.Equal(t, 2, published[0].ID)

	sale, _, err := s.ListPages(ctx, cms.PageFilter{Search: "SALE", PageTypeIDs: []int{2}}, 0, 10)
	require.NoError(t, err)
	assert.Len(t, sale, 2)
}

func TestList_ZeroLimitCountsOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	pages, total, err := s.ListPages(ctx, cms.PageFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Equal(t, 4, total)

	types, total, err := s.ListPageTypes(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, types)
	assert.Equal(t, 3, total)

	attrs, total, err := s.UnassignedPageTypeAttributes(ctx, 1, cms.AttributeFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, attrs)
	assert.Equal(t, 2, total)
}

func TestSelectedAttributesByPageIDs(t *testing.T) {
	s := newStore(t)
	got, err := s.SelectedAttributesByPageIDs(context.Background(), []int{1, 2})
	require.NoError(t, err)

	require.Len(t, got[1], 2)
	assert.Equal(t, "author", got[1][0].Attribute.Slug)
	assert.Equal(t, "jane-doe", got[1][0].Values[0].Slug)
	assert.Equal(t, "tags", got[1][1].Attribute.Slug)
	assert.Len(t, got[1][1].Values, 2)
	_, ok := got[2]
	assert.False(t, ok, "pages without attributes are absent")
}

func TestAttributesByPageTypeIDs_SortOrder(t *testing.T) {
	s := newStore(t)
	got, err := s.AttributesByPageTypeIDs(context.Background(), []int{1, 3})
	require.NoError(t, err)
	require.Len(t, got[1], 2)
	assert.Equal(t, "author", got[1][0].Slug)
	assert.Equal(t, "tags", got[1][1].Slug)
	assert.NotContains(t, got, 3)
}

func TestUnassignedPageTypeAttributes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	got, total, err := s.UnassignedPageTypeAttributes(ctx, 1, cms.AttributeFilter{}, 0, cms.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "hero-image", got[0].Slug)
	assert.Equal(t, "audience", got[1].Slug)

	required := true
	got, total, err = s.UnassignedPageTypeAttributes(ctx, 1, cms.AttributeFilter{ValueRequired: &required}, 0, cms.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "audience", got[0].Slug)
}

func TestPageTranslations(t *testing.T) {
	s := newStore(t)
	de := cms.TranslationKey{PageID: 1, LanguageCode: "de"}
	pl := cms.TranslationKey{PageID: 1, LanguageCode: "pl"}
	got, err := s.PageTranslations(context.Background(), []cms.TranslationKey{de, pl})
	require.NoError(t, err)
	assert.Equal(t, "Über uns", got[de].Title)
	assert.NotContains(t, got, pl)
}

func TestCancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.PagesByIDs(ctx, []int{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"page_types":[{"id":7,"name":"Doc","slug":"doc"}]}`), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	got, err := s.PageTypesByIDs(context.Background(), []int{7})
	require.NoError(t, err)
	assert.Equal(t, "Doc", got[7].Name)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = Open(path)
	assert.Error(t, err)
}

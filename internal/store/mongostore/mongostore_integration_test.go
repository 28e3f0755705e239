//go:build integration

package mongostore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMongo(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:6",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	store, disconnect, err := Connect(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()), "pagegraph_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = disconnect(ctx) })

	store.Now = func() time.Time { return time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, store.Seed(ctx, cms.DefaultFixture()))
	return store
}

func TestMongoStore(t *testing.T) {
	s := setupMongo(t)
	ctx := context.Background()

	t.Run("PagesByIDs", func(t *testing.T) {
		got, err := s.PagesByIDs(ctx, []int{3, 1, 99})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "about-us", got[1].Slug)
		require.NotNil(t, got[1].PublicationDate)
		assert.Equal(t, "light", got[1].Metadata["theme"])
	})

	t.Run("PageBySlug", func(t *testing.T) {
		p, err := s.PageBySlug(ctx, "careers")
		require.NoError(t, err)
		assert.Equal(t, 2, p.ID)
		_, err = s.PageBySlug(ctx, "missing")
		assert.ErrorIs(t, err, cms.ErrNotFound)
	})

	t.Run("ListPages", func(t *testing.T) {
		pages, total, err := s.ListPages(ctx, cms.PageFilter{PublishedOnly: true}, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, pages, 1)
		assert.Equal(t, 2, pages[0].ID)

		pages, total, err = s.ListPages(ctx, cms.PageFilter{Search: "SALE"}, 0, cms.NoLimit)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, pages, 2)

		pages, total, err = s.ListPages(ctx, cms.PageFilter{}, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Empty(t, pages)
	})

	t.Run("SelectedAttributesByPageIDs", func(t *testing.T) {
		got, err := s.SelectedAttributesByPageIDs(ctx, []int{1, 2, 3})
		require.NoError(t, err)
		require.Len(t, got[1], 2)
		assert.Equal(t, "author", got[1][0].Attribute.Slug)
		assert.Len(t, got[1][1].Values, 2)
		assert.Len(t, got[3], 1)
		assert.NotContains(t, got, 2)
	})

	t.Run("AttributesByPageTypeIDs", func(t *testing.T) {
		got, err := s.AttributesByPageTypeIDs(ctx, []int{1, 2, 3})
		require.NoError(t, err)
		require.Len(t, got[1], 2)
		assert.Equal(t, "author", got[1][0].Slug)
		assert.Equal(t, "tags", got[1][1].Slug)
		assert.Len(t, got[2], 1)
		assert.NotContains(t, got, 3)
	})

	t.Run("UnassignedPageTypeAttributes", func(t *testing.T) {
		got, total, err := s.UnassignedPageTypeAttributes(ctx, 1, cms.AttributeFilter{}, 0, cms.NoLimit)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, "hero-image", got[0].Slug)

		got, total, err = s.UnassignedPageTypeAttributes(ctx, 3, cms.AttributeFilter{Search: "aud"}, 0, cms.NoLimit)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "audience", got[0].Slug)
	})

	t.Run("PageTranslations", func(t *testing.T) {
		fr := cms.TranslationKey{PageID: 1, LanguageCode: "fr"}
		got, err := s.PageTranslations(ctx, []cms.TranslationKey{fr, {PageID: 2, LanguageCode: "fr"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "À propos", got[fr].Title)
	})
}

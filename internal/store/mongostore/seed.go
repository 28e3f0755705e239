package mongostore

import (
	"context"
	"fmt"

	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Seed replaces the contents of every collection with f and creates the
// indexes the store queries by.
func (s *Store) Seed(ctx context.Context, f *cms.Fixture) error {
	var result *multierror.Error
	collections := []struct {
		name string
		docs []any
	}{
		{CollectionNamePageTypes, toDocs(f.PageTypes)},
		{CollectionNamePages, toDocs(f.Pages)},
		{CollectionNameAttributes, toDocs(f.Attributes)},
		{CollectionNameAttributeValues, toDocs(f.AttributeValues)},
		{CollectionNameAttributePages, toDocs(f.AttributePages)},
		{CollectionNameAssignedPageAttributes, toDocs(f.AssignedPageAttributes)},
		{CollectionNamePageTranslations, toDocs(f.PageTranslations)},
	}
	for _, c := range collections {
		coll := s.collection(c.name)
		if err := coll.Drop(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("drop %s: %w", c.name, err))
			continue
		}
		if len(c.docs) == 0 {
			continue
		}
		if _, err := coll.InsertMany(ctx, c.docs); err != nil {
			result = multierror.Append(result, fmt.Errorf("insert %s: %w", c.name, err))
		}
	}
	if err := s.ensureIndexes(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	var result *multierror.Error
	indexes := map[string][]mongo.IndexModel{
		CollectionNamePages: {
			{Keys: bson.D{{Key: "slug", Value: 1}}},
			{Keys: bson.D{{Key: "page_type_id", Value: 1}}},
		},
		CollectionNameAttributePages: {
			{Keys: bson.D{{Key: "page_type_id", Value: 1}, {Key: "sort_order", Value: 1}}},
		},
		CollectionNameAssignedPageAttributes: {
			{Keys: bson.D{{Key: "page_id", Value: 1}}},
		},
		CollectionNamePageTranslations: {
			{Keys: bson.D{{Key: "page_id", Value: 1}, {Key: "language_code", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.collection(name).Indexes().CreateMany(ctx, models); err != nil {
			result = multierror.Append(result, fmt.Errorf("index %s: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}

func toDocs[T any](items []*T) []any {
	docs := make([]any, len(items))
	for i, it := range items {
		docs[i] = it
	}
	return docs
}

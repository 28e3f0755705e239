// Package mongostore is a cms.Store backed by MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hanpama/pagegraph/internal/cms"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionNamePages                  = "pages"
	CollectionNamePageTypes              = "page_types"
	CollectionNameAttributes             = "attributes"
	CollectionNameAttributeValues        = "attribute_values"
	CollectionNameAttributePages         = "attribute_pages"
	CollectionNameAssignedPageAttributes = "assigned_page_attributes"
	CollectionNamePageTranslations       = "page_translations"
)

type Store struct {
	db *mongo.Database

	// Now is used to decide whether a page is visible yet
	Now func() time.Time
}

var _ cms.Store = (*Store)(nil)

func New(db *mongo.Database) *Store {
	return &Store{db: db, Now: time.Now}
}

// Connect opens a client for uri and returns a store on database.
func Connect(ctx context.Context, uri, database string) (*Store, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return New(client.Database(database)), client.Disconnect, nil
}

func (s *Store) collection(name string) *mongo.Collection { return s.db.Collection(name) }

func (s *Store) PagesByIDs(ctx context.Context, ids []int) (map[int]*cms.Page, error) {
	return findByIDs(ctx, s.collection(CollectionNamePages), ids, func(p *cms.Page) int { return p.ID })
}

func (s *Store) PageBySlug(ctx context.Context, slug string) (*cms.Page, error) {
	var p cms.Page
	err := s.collection(CollectionNamePages).FindOne(ctx, bson.M{"slug": slug}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, cms.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find page by slug: %w", err)
	}
	return &p, nil
}

func (s *Store) ListPages(ctx context.Context, filter cms.PageFilter, offset, limit int) ([]*cms.Page, int, error) {
	var and bson.A
	if filter.PublishedOnly {
		and = append(and,
			bson.M{"is_published": true},
			bson.M{"$or": bson.A{
				bson.M{"publication_date": bson.M{"$exists": false}},
				bson.M{"publication_date": nil},
				bson.M{"publication_date": bson.M{"$lte": s.Now()}},
			}},
		)
	}
	if len(filter.Slugs) > 0 {
		and = append(and, bson.M{"slug": bson.M{"$in": filter.Slugs}})
	}
	if len(filter.PageTypeIDs) > 0 {
		and = append(and, bson.M{"page_type_id": bson.M{"$in": filter.PageTypeIDs}})
	}
	if filter.Search != "" {
		rx := searchRegex(filter.Search)
		and = append(and, bson.M{"$or": bson.A{bson.M{"title": rx}, bson.M{"content": rx}}})
	}
	query := bson.M{}
	if len(and) > 0 {
		query = bson.M{"$and": and}
	}
	return findPage[cms.Page](ctx, s.collection(CollectionNamePages), query, offset, limit)
}

func (s *Store) PageTypesByIDs(ctx context.Context, ids []int) (map[int]*cms.PageType, error) {
	return findByIDs(ctx, s.collection(CollectionNamePageTypes), ids, func(pt *cms.PageType) int { return pt.ID })
}

func (s *Store) ListPageTypes(ctx context.Context, offset, limit int) ([]*cms.PageType, int, error) {
	return findPage[cms.PageType](ctx, s.collection(CollectionNamePageTypes), bson.M{}, offset, limit)
}

func (s *Store) SelectedAttributesByPageIDs(ctx context.Context, pageIDs []int) (map[int][]*cms.SelectedAttribute, error) {
	cur, err := s.collection(CollectionNameAssignedPageAttributes).Find(ctx,
		bson.M{"page_id": bson.M{"$in": pageIDs}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find assigned page attributes: %w", err)
	}
	var assigned []*cms.AssignedPageAttribute
	if err := cur.All(ctx, &assigned); err != nil {
		return nil, fmt.Errorf("decode assigned page attributes: %w", err)
	}
	if len(assigned) == 0 {
		return map[int][]*cms.SelectedAttribute{}, nil
	}

	var attrIDs, valueIDs []int
	for _, a := range assigned {
		attrIDs = append(attrIDs, a.AttributeID)
		valueIDs = append(valueIDs, a.ValueIDs...)
	}
	attributes, err := findByIDs(ctx, s.collection(CollectionNameAttributes), attrIDs, func(a *cms.Attribute) int { return a.ID })
	if err != nil {
		return nil, err
	}
	values, err := findByIDs(ctx, s.collection(CollectionNameAttributeValues), valueIDs, func(v *cms.AttributeValue) int { return v.ID })
	if err != nil {
		return nil, err
	}
	return cms.AssembleSelected(assigned, attributes, values), nil
}

type pageTypeAttribute struct {
	PageTypeID int              `bson:"page_type_id"`
	Attribute  []*cms.Attribute `bson:"attribute"`
}

func (s *Store) AttributesByPageTypeIDs(ctx context.Context, pageTypeIDs []int) (map[int][]*cms.Attribute, error) {
	cur, err := s.collection(CollectionNameAttributePages).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"page_type_id": bson.M{"$in": pageTypeIDs}}}},
		{{Key: "$sort", Value: bson.D{{Key: "sort_order", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         CollectionNameAttributes,
			"localField":   "attribute_id",
			"foreignField": "_id",
			"as":           "attribute",
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate page type attributes: %w", err)
	}
	var rows []pageTypeAttribute
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode page type attributes: %w", err)
	}
	out := make(map[int][]*cms.Attribute)
	for _, r := range rows {
		if len(r.Attribute) == 0 {
			continue
		}
		out[r.PageTypeID] = append(out[r.PageTypeID], r.Attribute[0])
	}
	return out, nil
}

func (s *Store) UnassignedPageTypeAttributes(ctx context.Context, pageTypeID int, filter cms.AttributeFilter, offset, limit int) ([]*cms.Attribute, int, error) {
	assigned, err := s.collection(CollectionNameAttributePages).Distinct(ctx, "attribute_id", bson.M{"page_type_id": pageTypeID})
	if err != nil {
		return nil, 0, fmt.Errorf("distinct assigned attributes: %w", err)
	}
	if assigned == nil {
		assigned = []any{}
	}
	query := bson.M{
		"type": cms.AttributeTypePage,
		"_id":  bson.M{"$nin": assigned},
	}
	if filter.Search != "" {
		rx := searchRegex(filter.Search)
		query["$or"] = bson.A{bson.M{"name": rx}, bson.M{"slug": rx}}
	}
	if len(filter.Slugs) > 0 {
		query["slug"] = bson.M{"$in": filter.Slugs}
	}
	if filter.ValueRequired != nil {
		query["value_required"] = *filter.ValueRequired
	}
	if filter.VisibleInStorefront != nil {
		query["visible_in_storefront"] = *filter.VisibleInStorefront
	}
	return findPage[cms.Attribute](ctx, s.collection(CollectionNameAttributes), query, offset, limit)
}

func (s *Store) PageTranslations(ctx context.Context, keys []cms.TranslationKey) (map[cms.TranslationKey]*cms.PageTranslation, error) {
	or := make(bson.A, len(keys))
	for i, k := range keys {
		or[i] = bson.M{"page_id": k.PageID, "language_code": k.LanguageCode}
	}
	out := make(map[cms.TranslationKey]*cms.PageTranslation, len(keys))
	if len(or) == 0 {
		return out, nil
	}
	cur, err := s.collection(CollectionNamePageTranslations).Find(ctx, bson.M{"$or": or})
	if err != nil {
		return nil, fmt.Errorf("find page translations: %w", err)
	}
	var rows []*cms.PageTranslation
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode page translations: %w", err)
	}
	for _, t := range rows {
		out[cms.TranslationKey{PageID: t.PageID, LanguageCode: t.LanguageCode}] = t
	}
	return out, nil
}

func findByIDs[T any](ctx context.Context, coll *mongo.Collection, ids []int, id func(*T) int) (map[int]*T, error) {
	out := make(map[int]*T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	var rows []*T
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	for _, r := range rows {
		out[id(r)] = r
	}
	return out, nil
}

func findPage[T any](ctx context.Context, coll *mongo.Collection, query bson.M, offset, limit int) ([]*T, int, error) {
	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", coll.Name(), err)
	}
	// SetLimit(0) means unbounded to the server, so an empty window never queries.
	if limit == 0 {
		return []*T{}, int(total), nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(int64(max(offset, 0)))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	rows := []*T{}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return rows, int(total), nil
}

func searchRegex(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

package cmsrt

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hanpama/pagegraph/internal/auth"
	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/hanpama/pagegraph/internal/dataloader"
	"github.com/hanpama/pagegraph/internal/relay"
)

func (r *Runtime) register() {
	r.registerQuery()
	r.registerPage()
	r.registerPageType()
	r.registerAttributes()
	r.registerTranslation()

	registerConnection[*cms.Page](r, "PageCountableConnection", "PageCountableEdge")
	registerConnection[*cms.PageType](r, "PageTypeCountableConnection", "PageTypeCountableEdge")
	registerConnection[*cms.Attribute](r, "AttributeCountableConnection", "AttributeCountableEdge")
	r.sync["PageInfo.hasNextPage"] = field(func(p relay.PageInfo) any { return p.HasNextPage })
	r.sync["PageInfo.hasPreviousPage"] = field(func(p relay.PageInfo) any { return p.HasPreviousPage })
	r.sync["PageInfo.startCursor"] = field(func(p relay.PageInfo) any { return deref(p.StartCursor) })
	r.sync["PageInfo.endCursor"] = field(func(p relay.PageInfo) any { return deref(p.EndCursor) })

	r.sync["MetadataItem.key"] = field(func(m metadataItem) any { return m.Key })
	r.sync["MetadataItem.value"] = field(func(m metadataItem) any { return m.Value })
	r.sync["MetaStore.namespace"] = field(func(m metaStore) any { return m.Namespace })
	r.sync["MetaStore.clients"] = field(func(m metaStore) any { return m.Clients })
	r.sync["MetaClientStore.name"] = field(func(c metaClientStore) any { return c.Name })
	r.sync["MetaClientStore.metadata"] = field(func(c metaClientStore) any { return c.Metadata })
	r.sync["MetaItem.key"] = field(func(m metadataItem) any { return m.Key })
	r.sync["MetaItem.value"] = field(func(m metadataItem) any { return m.Value })
}

func (r *Runtime) registerQuery() {
	r.async["Query.page"] = func(ctx context.Context, l *cms.Loaders, _ any, args map[string]any) dataloader.Thunk[any] {
		id, hasID := argString(args, "id")
		slug, hasSlug := argString(args, "slug")
		switch {
		case hasID == hasSlug:
			return fail(errors.New("provide exactly one of id or slug"))
		case hasSlug:
			return func() (any, error) {
				p, err := r.store.PageBySlug(ctx, slug)
				if errors.Is(err, cms.ErrNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				l.PageByID.Prime(p.ID, p)
				return r.visiblePage(ctx, p), nil
			}
		}
		pk, err := relay.FromGlobalIDOf("Page", id)
		if err != nil {
			return fail(err)
		}
		return r.loadVisiblePage(ctx, l, pk)
	}

	r.async["Query.pages"] = func(ctx context.Context, l *cms.Loaders, _ any, args map[string]any) dataloader.Thunk[any] {
		offset, limit, err := pagination(args)
		if err != nil {
			return fail(err)
		}
		filter, err := pageFilter(args)
		if err != nil {
			return fail(err)
		}
		filter.PublishedOnly = !auth.FromContext(ctx).Has(auth.ManagePages)
		return func() (any, error) {
			pages, total, err := r.store.ListPages(ctx, filter, offset, limit)
			if err != nil {
				return nil, err
			}
			for _, p := range pages {
				l.PageByID.Prime(p.ID, p)
			}
			return relay.NewConnection(pages, offset, total), nil
		}
	}

	r.async["Query.pageType"] = func(ctx context.Context, l *cms.Loaders, _ any, args map[string]any) dataloader.Thunk[any] {
		id, _ := argString(args, "id")
		pk, err := relay.FromGlobalIDOf("PageType", id)
		if err != nil {
			return fail(err)
		}
		return then(l.PageTypeByID.LoadThunk(ctx, pk), orNull[*cms.PageType])
	}

	r.async["Query.pageTypes"] = func(ctx context.Context, l *cms.Loaders, _ any, args map[string]any) dataloader.Thunk[any] {
		offset, limit, err := pagination(args)
		if err != nil {
			return fail(err)
		}
		return func() (any, error) {
			types, total, err := r.store.ListPageTypes(ctx, offset, limit)
			if err != nil {
				return nil, err
			}
			for _, pt := range types {
				l.PageTypeByID.Prime(pt.ID, pt)
			}
			return relay.NewConnection(types, offset, total), nil
		}
	}

	r.async["Query.node"] = func(ctx context.Context, l *cms.Loaders, _ any, args map[string]any) dataloader.Thunk[any] {
		id, _ := argString(args, "id")
		typeName, pk, err := relay.FromGlobalID(id)
		if err != nil {
			return fail(err)
		}
		switch typeName {
		case "Page":
			return r.loadVisiblePage(ctx, l, pk)
		case "PageType":
			return then(l.PageTypeByID.LoadThunk(ctx, pk), orNull[*cms.PageType])
		}
		return fail(fmt.Errorf("%w: unknown node type %s", relay.ErrInvalidID, typeName))
	}

	r.async["Query._entities"] = func(ctx context.Context, l *cms.Loaders, _ any, args map[string]any) dataloader.Thunk[any] {
		reps, _ := args["representations"].([]any)
		thunks := make([]dataloader.Thunk[any], len(reps))
		for i, rep := range reps {
			thunks[i] = r.entity(ctx, l, rep)
		}
		return func() (any, error) {
			out := make([]any, len(thunks))
			for i, thunk := range thunks {
				v, err := thunk()
				if err != nil {
					return nil, fmt.Errorf("representation %d: %w", i, err)
				}
				out[i] = v
			}
			return out, nil
		}
	}
	r.sync["Query._service"] = func(context.Context, any, map[string]any) (any, error) {
		return service{sdl: sdl}, nil
	}
	r.sync["_Service.sdl"] = field(func(s service) any { return s.sdl })
}

type service struct{ sdl string }

// entity registers the load of the object a federation representation
// refers to. Only PageType is keyed, by its global id.
func (r *Runtime) entity(ctx context.Context, l *cms.Loaders, rep any) dataloader.Thunk[any] {
	m, ok := rep.(map[string]any)
	if !ok {
		return fail(fmt.Errorf("representation must be an object, got %T", rep))
	}
	typeName, _ := m["__typename"].(string)
	if typeName != "PageType" {
		return fail(fmt.Errorf("unknown entity type %q", typeName))
	}
	id, _ := m["id"].(string)
	pk, err := relay.FromGlobalIDOf("PageType", id)
	if err != nil {
		return fail(err)
	}
	return then(l.PageTypeByID.LoadThunk(ctx, pk), orNull[*cms.PageType])
}

// loadVisiblePage loads a page and hides it from requestors that may not
// see it yet.
func (r *Runtime) loadVisiblePage(ctx context.Context, l *cms.Loaders, pk int) dataloader.Thunk[any] {
	return then(l.PageByID.LoadThunk(ctx, pk), func(p *cms.Page, err error) (any, error) {
		if dataloader.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return r.visiblePage(ctx, p), nil
	})
}

func (r *Runtime) visiblePage(ctx context.Context, p *cms.Page) *cms.Page {
	if auth.FromContext(ctx).Has(auth.ManagePages) || p.VisibleAt(r.now()) {
		return p
	}
	return nil
}

func (r *Runtime) registerPage() {
	r.sync["Page.id"] = field(func(p *cms.Page) any { return relay.ToGlobalID("Page", p.ID) })
	r.sync["Page.title"] = field(func(p *cms.Page) any { return p.Title })
	r.sync["Page.slug"] = field(func(p *cms.Page) any { return p.Slug })
	r.sync["Page.content"] = field(func(p *cms.Page) any { return p.Content })
	r.sync["Page.contentJson"] = field(func(p *cms.Page) any {
		if p.ContentJSON == "" {
			return "{}"
		}
		return p.ContentJSON
	})
	r.sync["Page.created"] = field(func(p *cms.Page) any { return p.Created })
	r.sync["Page.isPublished"] = field(func(p *cms.Page) any { return p.IsPublished })
	r.sync["Page.publicationDate"] = field(func(p *cms.Page) any { return p.PublicationDate })
	r.sync["Page.seoTitle"] = field(func(p *cms.Page) any { return p.SEOTitle })
	r.sync["Page.seoDescription"] = field(func(p *cms.Page) any { return p.SEODescription })

	r.async["Page.pageType"] = source(func(ctx context.Context, l *cms.Loaders, p *cms.Page, _ map[string]any) dataloader.Thunk[any] {
		return lift(l.PageTypeByID.LoadThunk(ctx, p.PageTypeID))
	})
	r.async["Page.attributes"] = source(func(ctx context.Context, l *cms.Loaders, p *cms.Page, _ map[string]any) dataloader.Thunk[any] {
		return lift(l.SelectedAttributesByPageID.LoadThunk(ctx, p.ID))
	})
	r.async["Page.translation"] = source(func(ctx context.Context, l *cms.Loaders, p *cms.Page, args map[string]any) dataloader.Thunk[any] {
		code, _ := argString(args, "languageCode")
		key := cms.TranslationKey{PageID: p.ID, LanguageCode: strings.ToLower(code)}
		return then(l.PageTranslationByKey.LoadThunk(ctx, key), orNull[*cms.PageTranslation])
	})

	metadataFields(r, "Page", auth.ManagePages, func(p *cms.Page) (cms.Metadata, cms.Metadata) {
		return p.Metadata, p.PrivateMetadata
	})
}

func (r *Runtime) registerPageType() {
	r.sync["PageType.id"] = field(func(pt *cms.PageType) any { return relay.ToGlobalID("PageType", pt.ID) })
	r.sync["PageType.name"] = field(func(pt *cms.PageType) any { return pt.Name })
	r.sync["PageType.slug"] = field(func(pt *cms.PageType) any { return pt.Slug })

	r.async["PageType.attributes"] = source(func(ctx context.Context, l *cms.Loaders, pt *cms.PageType, _ map[string]any) dataloader.Thunk[any] {
		return lift(l.PageAttributesByPageTypeID.LoadThunk(ctx, pt.ID))
	})
	r.async["PageType.availableAttributes"] = guardAsync(auth.ManagePages,
		source(func(ctx context.Context, _ *cms.Loaders, pt *cms.PageType, args map[string]any) dataloader.Thunk[any] {
			offset, limit, err := pagination(args)
			if err != nil {
				return fail(err)
			}
			filter := attributeFilter(args)
			return func() (any, error) {
				attrs, total, err := r.store.UnassignedPageTypeAttributes(ctx, pt.ID, filter, offset, limit)
				if err != nil {
					return nil, err
				}
				return relay.NewConnection(attrs, offset, total), nil
			}
		}))

	metadataFields(r, "PageType", auth.ManagePageTypesAndAttributes, func(pt *cms.PageType) (cms.Metadata, cms.Metadata) {
		return pt.Metadata, pt.PrivateMetadata
	})
}

func (r *Runtime) registerAttributes() {
	r.sync["SelectedAttribute.attribute"] = field(func(s *cms.SelectedAttribute) any { return s.Attribute })
	r.sync["SelectedAttribute.values"] = field(func(s *cms.SelectedAttribute) any { return s.Values })

	r.sync["Attribute.id"] = field(func(a *cms.Attribute) any { return relay.ToGlobalID("Attribute", a.ID) })
	r.sync["Attribute.name"] = field(func(a *cms.Attribute) any { return a.Name })
	r.sync["Attribute.slug"] = field(func(a *cms.Attribute) any { return a.Slug })
	r.sync["Attribute.type"] = field(func(a *cms.Attribute) any { return string(a.Type) })
	r.sync["Attribute.inputType"] = field(func(a *cms.Attribute) any { return strings.ToUpper(a.InputType) })
	r.sync["Attribute.valueRequired"] = field(func(a *cms.Attribute) any { return a.ValueRequired })
	r.sync["Attribute.visibleInStorefront"] = field(func(a *cms.Attribute) any { return a.VisibleInStorefront })

	r.sync["AttributeValue.id"] = field(func(v *cms.AttributeValue) any { return relay.ToGlobalID("AttributeValue", v.ID) })
	r.sync["AttributeValue.name"] = field(func(v *cms.AttributeValue) any { return v.Name })
	r.sync["AttributeValue.slug"] = field(func(v *cms.AttributeValue) any { return v.Slug })
	r.sync["AttributeValue.value"] = field(func(v *cms.AttributeValue) any { return v.Value })
}

type languageDisplay struct{ code string }

func (r *Runtime) registerTranslation() {
	r.sync["PageTranslation.id"] = field(func(t *cms.PageTranslation) any { return relay.ToGlobalID("PageTranslation", t.ID) })
	r.sync["PageTranslation.language"] = field(func(t *cms.PageTranslation) any {
		return languageDisplay{code: strings.ToUpper(t.LanguageCode)}
	})
	r.sync["PageTranslation.title"] = field(func(t *cms.PageTranslation) any { return t.Title })
	r.sync["PageTranslation.content"] = field(func(t *cms.PageTranslation) any { return t.Content })
	r.sync["PageTranslation.seoTitle"] = field(func(t *cms.PageTranslation) any { return t.SEOTitle })
	r.sync["PageTranslation.seoDescription"] = field(func(t *cms.PageTranslation) any { return t.SEODescription })
	r.sync["LanguageDisplay.code"] = field(func(d languageDisplay) any { return d.code })
}

func registerConnection[T any](r *Runtime, connection, edge string) {
	r.sync[connection+".edges"] = field(func(c *relay.Connection[T]) any { return c.Edges })
	r.sync[connection+".pageInfo"] = field(func(c *relay.Connection[T]) any { return c.PageInfo })
	r.sync[connection+".totalCount"] = field(func(c *relay.Connection[T]) any { return c.TotalCount })
	r.sync[edge+".node"] = field(func(e relay.Edge[T]) any { return e.Node })
	r.sync[edge+".cursor"] = field(func(e relay.Edge[T]) any { return e.Cursor })
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

type metadataItem struct {
	Key   string
	Value string
}

func metadataItems(m cms.Metadata) []metadataItem {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	items := make([]metadataItem, len(keys))
	for i, k := range keys {
		items[i] = metadataItem{Key: k, Value: m[k]}
	}
	return items
}

func metafield(m cms.Metadata, args map[string]any) any {
	key, _ := argString(args, "key")
	if v, ok := m[key]; ok {
		return v
	}
	return nil
}

type metaStore struct {
	Namespace string
	Clients   []metaClientStore
}

type metaClientStore struct {
	Name     string
	Metadata []metadataItem
}

// legacyMeta reads the entries kept in the namespaced layout, where the value
// is a JSON object {"client": {"key": "value"}}. Plain entries are skipped.
func legacyMeta(m cms.Metadata) []metaStore {
	stores := []metaStore{}
	for _, item := range metadataItems(m) {
		var clients map[string]cms.Metadata
		if err := json.Unmarshal([]byte(item.Value), &clients); err != nil || len(clients) == 0 {
			continue
		}
		store := metaStore{Namespace: item.Key, Clients: make([]metaClientStore, 0, len(clients))}
		for _, name := range slices.Sorted(maps.Keys(clients)) {
			store.Clients = append(store.Clients, metaClientStore{Name: name, Metadata: metadataItems(clients[name])})
		}
		stores = append(stores, store)
	}
	return stores
}

// metadataFields registers the ObjectWithMetadata fields of typeName. The
// private half requires perm.
func metadataFields[S any](r *Runtime, typeName string, perm auth.Permission, get func(S) (public, private cms.Metadata)) {
	r.sync[typeName+".metadata"] = field(func(s S) any {
		public, _ := get(s)
		return metadataItems(public)
	})
	r.sync[typeName+".metafield"] = fieldArgs(func(s S, args map[string]any) any {
		public, _ := get(s)
		return metafield(public, args)
	})
	r.sync[typeName+".privateMetadata"] = guard(perm, field(func(s S) any {
		_, private := get(s)
		return metadataItems(private)
	}))
	r.sync[typeName+".privateMetafield"] = guard(perm, fieldArgs(func(s S, args map[string]any) any {
		_, private := get(s)
		return metafield(private, args)
	}))
	r.sync[typeName+".meta"] = field(func(s S) any {
		public, _ := get(s)
		return legacyMeta(public)
	})
	r.sync[typeName+".privateMeta"] = guard(perm, field(func(s S) any {
		_, private := get(s)
		return legacyMeta(private)
	}))
}

// field adapts a getter on the parent value to a resolver.
func field[S any](get func(S) any) syncResolver {
	return fieldArgs(func(s S, _ map[string]any) any { return get(s) })
}

func fieldArgs[S any](get func(S, map[string]any) any) syncResolver {
	return func(_ context.Context, src any, args map[string]any) (any, error) {
		s, ok := src.(S)
		if !ok {
			return nil, fmt.Errorf("unexpected parent %T", src)
		}
		return get(s, args), nil
	}
}

// source asserts the parent of an async field.
func source[S any](resolve func(ctx context.Context, l *cms.Loaders, s S, args map[string]any) dataloader.Thunk[any]) asyncResolver {
	return func(ctx context.Context, l *cms.Loaders, src any, args map[string]any) dataloader.Thunk[any] {
		s, ok := src.(S)
		if !ok {
			return fail(fmt.Errorf("unexpected parent %T", src))
		}
		return resolve(ctx, l, s, args)
	}
}

// guard fails before next runs unless the requestor has perm.
func guard(perm auth.Permission, next syncResolver) syncResolver {
	return func(ctx context.Context, src any, args map[string]any) (any, error) {
		if err := auth.Require(ctx, perm); err != nil {
			return nil, err
		}
		return next(ctx, src, args)
	}
}

// guardAsync is guard for batched fields. A denied task registers no keys.
func guardAsync(perm auth.Permission, next asyncResolver) asyncResolver {
	return func(ctx context.Context, l *cms.Loaders, src any, args map[string]any) dataloader.Thunk[any] {
		if err := auth.Require(ctx, perm); err != nil {
			return fail(err)
		}
		return next(ctx, l, src, args)
	}
}

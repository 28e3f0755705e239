package cms

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hanpama/pagegraph/internal/dataloader"
)

// LoaderOptions configures the loaders created for each operation.
type LoaderOptions struct {
	MaxBatch int
	Hooks    []dataloader.Hook
}

// Loaders is the set of batched loaders owned by one GraphQL operation. It
// must not be shared between operations.
type Loaders struct {
	PageByID                   *dataloader.Loader[int, *Page]
	PageTypeByID               *dataloader.Loader[int, *PageType]
	SelectedAttributesByPageID *dataloader.Loader[int, []*SelectedAttribute]
	PageAttributesByPageTypeID *dataloader.Loader[int, []*Attribute]
	PageTranslationByKey       *dataloader.Loader[TranslationKey, *PageTranslation]

	all     []dispatcher
	batches atomic.Int64
}

type dispatcher interface {
	Name() string
	Pending() int
	Dispatch(ctx context.Context)
	Discard()
}

// NewLoaders creates a fresh loader set reading from store.
func NewLoaders(store Store, opts LoaderOptions) *Loaders {
	l := &Loaders{}
	hooks := append([]dataloader.Hook{counter{&l.batches}}, opts.Hooks...)

	l.PageByID = dataloader.New(store.PagesByIDs, dataloader.Config[int, *Page]{
		Name:     "PageByID",
		MaxBatch: opts.MaxBatch,
		Validate: positiveID,
		Hooks:    hooks,
	})
	l.PageTypeByID = dataloader.New(store.PageTypesByIDs, dataloader.Config[int, *PageType]{
		Name:     "PageTypeByID",
		MaxBatch: opts.MaxBatch,
		Validate: positiveID,
		Hooks:    hooks,
	})
	l.SelectedAttributesByPageID = dataloader.New(store.SelectedAttributesByPageIDs, dataloader.Config[int, []*SelectedAttribute]{
		Name:     "SelectedAttributesByPageID",
		MaxBatch: opts.MaxBatch,
		Validate: positiveID,
		Missing:  dataloader.EmptySlice[int, *SelectedAttribute],
		Hooks:    hooks,
	})
	l.PageAttributesByPageTypeID = dataloader.New(store.AttributesByPageTypeIDs, dataloader.Config[int, []*Attribute]{
		Name:     "PageAttributesByPageTypeID",
		MaxBatch: opts.MaxBatch,
		Validate: positiveID,
		Missing:  dataloader.EmptySlice[int, *Attribute],
		Hooks:    hooks,
	})
	l.PageTranslationByKey = dataloader.New(store.PageTranslations, dataloader.Config[TranslationKey, *PageTranslation]{
		Name:     "PageTranslationByKey",
		MaxBatch: opts.MaxBatch,
		Validate: validTranslationKey,
		Missing:  dataloader.ZeroValue[TranslationKey, *PageTranslation],
		Hooks:    hooks,
	})

	l.all = []dispatcher{
		l.PageByID,
		l.PageTypeByID,
		l.SelectedAttributesByPageID,
		l.PageAttributesByPageTypeID,
		l.PageTranslationByKey,
	}
	return l
}

// Dispatch closes the open window of every loader with pending keys and
// fetches them concurrently, returning when all are resolved.
func (l *Loaders) Dispatch(ctx context.Context) {
	var pending []dispatcher
	for _, d := range l.all {
		if d.Pending() > 0 {
			pending = append(pending, d)
		}
	}
	if len(pending) == 1 {
		pending[0].Dispatch(ctx)
		return
	}
	var wg sync.WaitGroup
	for _, d := range pending {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(ctx)
		}()
	}
	wg.Wait()
}

// Discard drops every undispatched window.
func (l *Loaders) Discard() {
	for _, d := range l.all {
		d.Discard()
	}
}

// Batches reports how many batch functions have run so far.
func (l *Loaders) Batches() int { return int(l.batches.Load()) }

type counter struct{ n *atomic.Int64 }

func (c counter) BeforeBatch(context.Context, dataloader.BatchInfo) { c.n.Add(1) }
func (c counter) AfterBatch(context.Context, dataloader.BatchInfo)  {}

func positiveID(id int) error {
	if id <= 0 {
		return fmt.Errorf("id must be positive, got %d", id)
	}
	return nil
}

func validTranslationKey(k TranslationKey) error {
	if err := positiveID(k.PageID); err != nil {
		return err
	}
	if k.LanguageCode == "" {
		return fmt.Errorf("language code is required")
	}
	return nil
}

type loadersKey struct{}

// WithLoaders returns a copy of ctx carrying l.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey{}, l)
}

// LoadersFromContext returns the loaders of the current operation.
func LoadersFromContext(ctx context.Context) (*Loaders, bool) {
	l, ok := ctx.Value(loadersKey{}).(*Loaders)
	return l, ok
}

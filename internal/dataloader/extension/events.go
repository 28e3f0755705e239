package extension

import (
	"context"

	"github.com/hanpama/pagegraph/internal/dataloader"
	"github.com/hanpama/pagegraph/internal/eventbus"
	"github.com/hanpama/pagegraph/internal/events"
)

// Events republishes batches on the global event bus so that tracing and
// request accounting can observe them.
type Events struct{}

func (Events) BeforeBatch(ctx context.Context, info dataloader.BatchInfo) {
	eventbus.Publish(ctx, events.LoaderBatchStart{
		BatchID: info.ID,
		Loader:  info.Loader,
		Keys:    info.Keys,
	})
}

func (Events) AfterBatch(ctx context.Context, info dataloader.BatchInfo) {
	eventbus.Publish(ctx, events.LoaderBatchFinish{
		BatchID:  info.ID,
		Loader:   info.Loader,
		Keys:     info.Keys,
		NotFound: info.NotFound,
		Err:      info.Err,
		Duration: info.Duration,
	})
}

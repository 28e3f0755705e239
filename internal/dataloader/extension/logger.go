package extension

import (
	"context"

	"github.com/hanpama/pagegraph/internal/dataloader"
	"github.com/rs/zerolog"
)

// Logger is a hook that logs every batch for debugging
type Logger struct {
	Log zerolog.Logger
}

func NewLogger(log zerolog.Logger) Logger { return Logger{Log: log} }

func (h Logger) BeforeBatch(_ context.Context, info dataloader.BatchInfo) {
	h.Log.Debug().
		Uint64("batch", info.ID).
		Str("loader", info.Loader).
		Int("keys", info.Keys).
		Msg("loading start")
}

func (h Logger) AfterBatch(_ context.Context, info dataloader.BatchInfo) {
	if info.Err != nil {
		h.Log.Warn().
			Uint64("batch", info.ID).
			Str("loader", info.Loader).
			Int("keys", info.Keys).
			Dur("took", info.Duration).
			Err(info.Err).
			Msg("loading failed")
		return
	}
	h.Log.Debug().
		Uint64("batch", info.ID).
		Str("loader", info.Loader).
		Int("keys", info.Keys).
		Int("notfound", info.NotFound).
		Dur("took", info.Duration).
		Msg("loading finish")
}

package dataloader

import (
	"context"
	"sync/atomic"
	"time"
)

// BatchInfo describes one batch function call.
type BatchInfo struct {
	// ID is unique per process and pairs BeforeBatch with AfterBatch.
	ID       uint64
	Loader   string
	Keys     int
	NotFound int
	Duration time.Duration
	// Err is the *BatchError delivered to every key when the whole batch failed.
	Err error
}

// Hook observes batch function calls. Hooks run on the dispatching goroutine
// and must not block.
type Hook interface {
	BeforeBatch(ctx context.Context, info BatchInfo)
	AfterBatch(ctx context.Context, info BatchInfo)
}

var batchSeq atomic.Uint64

func nextBatchID() uint64 { return batchSeq.Add(1) }

package events

import "time"

// LoaderBatchStart is emitted before a loader calls its batch function.
type LoaderBatchStart struct {
	BatchID uint64
	Loader  string
	Keys    int
}

// LoaderBatchFinish is emitted after a batch function returns.
// Err is set only when the whole batch failed.
type LoaderBatchFinish struct {
	BatchID  uint64
	Loader   string
	Keys     int
	NotFound int
	Err      error
	Duration time.Duration
}

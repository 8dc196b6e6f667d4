package crawler

import "sync/atomic"

// RunStats accumulates run-wide failure counters for the end-of-run summary.
// Counters are atomics so fetchers and workers can bump them without sharing
// any crawl state.
type RunStats struct {
	FetchAttempts atomic.Int64
	FetchRetries  atomic.Int64
	FetchEmpties  atomic.Int64
	PagesSkipped  atomic.Int64
	ItemsSkipped  atomic.Int64
}

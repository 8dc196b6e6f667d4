package crawler

import (
	"context"
	"errors"
	"time"
)

// ErrNoContent is the definitive "empty" outcome of a fetch: the site's
// no-recipe marker, or retries exhausted. Callers treat it as "this page
// contributes nothing", never as a run failure.
var ErrNoContent = errors.New("no content")

// Fetcher retrieves a page with bounded retry. The only errors it returns
// are ErrNoContent and context cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Transport performs a single HTTP GET. Implementations may return a
// non-nil body alongside an error (e.g. an error page carrying the site's
// no-content marker).
type Transport interface {
	Get(ctx context.Context, url string) (status int, body []byte, err error)
}

// Extractor is the page-extraction capability consumed by workers. Detail
// fails only when a mandatory field is missing; optional fields default
// independently. Reviews never fails: an unparseable section yields zero
// records.
type Extractor interface {
	Listing(page Page) (total int, detailURLs []string, err error)
	Detail(page Page) (Recipe, error)
	Reviews(page Page) []Review
}

// Merger appends a unit's batch to the durable stores. All merges in the
// process are serialized through a single lock; an empty batch is a no-op.
type Merger interface {
	Merge(ctx context.Context, batch Batch) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Sleeper pauses for a duration, returning early when the context finishes.
type Sleeper interface {
	Pause(ctx context.Context, d time.Duration)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

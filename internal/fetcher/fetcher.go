// Package fetcher implements page retrieval with bounded retry and
// jittered backoff.
package fetcher

import (
	"bytes"
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/sikbang/recipe-harvester/internal/crawler"
	"github.com/sikbang/recipe-harvester/internal/metrics"
)

// JitterFunc draws a backoff delay from [min, max].
type JitterFunc func(min, max time.Duration) time.Duration

// Config controls retry behavior.
type Config struct {
	// MaxAttempts caps attempts per URL, including the first.
	MaxAttempts int
	// BackoffMin and BackoffMax bound the uniform random sleep between
	// attempts. The schedule is flat, not exponential.
	BackoffMin time.Duration
	BackoffMax time.Duration
	// EmptyMarker is the site's "no recipe" body marker. A body containing
	// it is a definitive empty outcome regardless of HTTP status.
	EmptyMarker string
}

// Retrying wraps a Transport with the retry-or-empty policy. It never
// returns transport errors to callers: every failure mode collapses into
// crawler.ErrNoContent after the attempt cap, except context cancellation.
type Retrying struct {
	transport crawler.Transport
	sleeper   crawler.Sleeper
	jitter    JitterFunc
	stats     *crawler.RunStats
	cfg       Config
	logger    *zap.Logger
}

// New builds a Retrying fetcher.
func New(
	transport crawler.Transport,
	sleeper crawler.Sleeper,
	stats *crawler.RunStats,
	cfg Config,
	logger *zap.Logger,
) *Retrying {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{
		transport: transport,
		sleeper:   sleeper,
		jitter:    uniformJitter,
		stats:     stats,
		cfg:       cfg,
		logger:    logger,
	}
}

// WithJitter overrides the backoff jitter source, mainly for tests.
func (f *Retrying) WithJitter(j JitterFunc) *Retrying {
	if j != nil {
		f.jitter = j
	}
	return f
}

// Fetch retrieves url, retrying transport failures and non-2xx statuses up
// to the attempt cap with a uniform random sleep between attempts.
func (f *Retrying) Fetch(ctx context.Context, url string) (crawler.Page, error) {
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return crawler.Page{}, err
		}

		status, body, err := f.transport.Get(ctx, url)
		if f.stats != nil {
			f.stats.FetchAttempts.Add(1)
		}

		// The no-content marker wins over everything, including error
		// statuses: the site serves it with its own popup page.
		if f.cfg.EmptyMarker != "" && bytes.Contains(body, []byte(f.cfg.EmptyMarker)) {
			f.logger.Info("no-content marker in response", zap.String("url", url))
			f.recordEmpty()
			return crawler.Page{}, crawler.ErrNoContent
		}

		if err == nil && status >= 200 && status < 300 {
			metrics.ObserveFetch("success")
			return crawler.Page{URL: url, Body: body}, nil
		}

		metrics.ObserveFetch("failure")
		f.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Error(err),
		)

		if attempt == f.cfg.MaxAttempts {
			break
		}
		if f.stats != nil {
			f.stats.FetchRetries.Add(1)
		}
		metrics.ObserveRetry()
		f.sleeper.Pause(ctx, f.jitter(f.cfg.BackoffMin, f.cfg.BackoffMax))
	}

	if err := ctx.Err(); err != nil {
		return crawler.Page{}, err
	}
	f.logger.Warn("retries exhausted", zap.String("url", url), zap.Int("attempts", f.cfg.MaxAttempts))
	f.recordEmpty()
	return crawler.Page{}, crawler.ErrNoContent
}

func (f *Retrying) recordEmpty() {
	if f.stats != nil {
		f.stats.FetchEmpties.Add(1)
	}
	metrics.ObserveFetch("empty")
	metrics.ObserveEmpty()
}

func uniformJitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}

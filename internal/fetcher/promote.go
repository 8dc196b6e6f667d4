package fetcher

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/sikbang/recipe-harvester/internal/crawler"
)

// PromoteConfig tunes the script-rendered-page heuristic.
type PromoteConfig struct {
	// MinHTMLBytes promotes responses smaller than this.
	MinHTMLBytes int
	// Keywords promote responses whose body contains any of them.
	Keywords []string
}

// Promoting routes GETs through a fast transport and re-fetches with a
// rendered (headless) transport when the response looks script-built.
type Promoting struct {
	fast     crawler.Transport
	rendered crawler.Transport
	cfg      PromoteConfig
	logger   *zap.Logger
}

// NewPromoting wraps fast with a rendered fallback.
func NewPromoting(fast, rendered crawler.Transport, cfg PromoteConfig, logger *zap.Logger) *Promoting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{
		fast:     fast,
		rendered: rendered,
		cfg:      cfg,
		logger:   logger,
	}
}

// Get fetches via the fast path and promotes to the rendered path when the
// heuristic fires. A failed promotion falls back to the fast result.
func (p *Promoting) Get(ctx context.Context, url string) (int, []byte, error) {
	status, body, err := p.fast.Get(ctx, url)
	if err != nil || p.rendered == nil || !p.shouldPromote(body) {
		return status, body, err
	}

	p.logger.Info("promoting to rendered fetch", zap.String("url", url))
	rStatus, rBody, rErr := p.rendered.Get(ctx, url)
	if rErr != nil {
		p.logger.Warn("rendered fetch failed, keeping fast result",
			zap.String("url", url), zap.Error(rErr))
		return status, body, err
	}
	return rStatus, rBody, nil
}

func (p *Promoting) shouldPromote(body []byte) bool {
	if p.cfg.MinHTMLBytes > 0 && len(body) < p.cfg.MinHTMLBytes {
		return true
	}
	for _, kw := range p.cfg.Keywords {
		if kw != "" && bytes.Contains(body, []byte(kw)) {
			return true
		}
	}
	return false
}

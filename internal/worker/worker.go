// Package worker implements the per-combination crawl loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sikbang/recipe-harvester/internal/crawler"
)

// Config controls Worker behavior.
type Config struct {
	// BaseURL is the site root, e.g. https://www.10000recipe.com.
	BaseURL string
	// PageSize is the number of items per listing page; page count is
	// total/PageSize + 1.
	PageSize int
	// DetailPause is applied after every detail-page fetch, ListingPause
	// after every listing-page fetch, success or not.
	DetailPause  time.Duration
	ListingPause time.Duration
}

// Worker turns one work unit into a batch of recipes and reviews. It holds
// no mutable state across units; everything is scoped to a Process call.
type Worker struct {
	fetcher   crawler.Fetcher
	extractor crawler.Extractor
	pauser    crawler.Sleeper
	stats     *crawler.RunStats
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	fetcher crawler.Fetcher,
	extractor crawler.Extractor,
	pauser crawler.Sleeper,
	stats *crawler.RunStats,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 40
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		fetcher:   fetcher,
		extractor: extractor,
		pauser:    pauser,
		stats:     stats,
		cfg:       cfg,
		logger:    logger,
	}
}

// PageCount computes the listing page count for a total result count.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = 40
	}
	if total < 0 {
		total = 0
	}
	return total/pageSize + 1
}

// Process crawls one unit to completion. Every failure below it maps to
// "contribute nothing for this item/page/unit"; the only errors returned
// are context cancellation.
func (w *Worker) Process(ctx context.Context, unit crawler.WorkUnit) (crawler.Batch, error) {
	batch := crawler.Batch{Unit: unit}
	if err := ctx.Err(); err != nil {
		return batch, err
	}
	listingURL := w.listingURL(unit)

	first, err := w.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		if !errors.Is(err, crawler.ErrNoContent) {
			return batch, err
		}
		return batch, nil
	}

	total, firstURLs, err := w.extractor.Listing(first)
	if err != nil {
		// Missing listing metadata drops the whole unit, by contract.
		w.logger.Warn("listing metadata unreadable, skipping unit",
			zap.String("unit", unit.Key()), zap.Error(err))
		return batch, nil
	}

	pages := PageCount(total, w.cfg.PageSize)
	w.logger.Debug("unit listing resolved",
		zap.String("unit", unit.Key()), zap.Int("total", total), zap.Int("pages", pages))

	index := 1
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		detailURLs, ok := w.listingPage(ctx, unit, listingURL, page, firstURLs)
		if !ok {
			continue
		}
		for _, detailURL := range detailURLs {
			if err := ctx.Err(); err != nil {
				return batch, err
			}
			if w.detail(ctx, unit, detailURL, index, &batch) {
				index++
			}
		}
	}
	return batch, nil
}

// listingPage returns the detail URLs of one listing page. Page 1 reuses
// the already-extracted URLs; later pages re-fetch with a page parameter.
func (w *Worker) listingPage(
	ctx context.Context,
	unit crawler.WorkUnit,
	listingURL string,
	page int,
	firstURLs []string,
) ([]string, bool) {
	if page == 1 {
		w.pauser.Pause(ctx, w.cfg.ListingPause)
		return firstURLs, true
	}

	pageURL := fmt.Sprintf("%s&page=%d", listingURL, page)
	content, err := w.fetcher.Fetch(ctx, pageURL)
	w.pauser.Pause(ctx, w.cfg.ListingPause)
	if err != nil {
		if w.stats != nil {
			w.stats.PagesSkipped.Add(1)
		}
		w.logger.Warn("listing page skipped",
			zap.String("unit", unit.Key()), zap.Int("page", page))
		return nil, false
	}

	_, urls, err := w.extractor.Listing(content)
	if err != nil {
		if w.stats != nil {
			w.stats.PagesSkipped.Add(1)
		}
		w.logger.Warn("listing page unreadable",
			zap.String("unit", unit.Key()), zap.Int("page", page), zap.Error(err))
		return nil, false
	}
	return urls, true
}

// detail fetches and extracts one recipe page, appending to the batch.
// Returns whether an item was added (and the per-unit index consumed).
func (w *Worker) detail(
	ctx context.Context,
	unit crawler.WorkUnit,
	detailURL string,
	index int,
	batch *crawler.Batch,
) bool {
	content, err := w.fetcher.Fetch(ctx, detailURL)
	w.pauser.Pause(ctx, w.cfg.DetailPause)
	if err != nil {
		return false
	}

	recipe, err := w.extractor.Detail(content)
	if err != nil {
		if w.stats != nil {
			w.stats.ItemsSkipped.Add(1)
		}
		w.logger.Debug("item skipped",
			zap.String("unit", unit.Key()), zap.String("url", detailURL), zap.Error(err))
		return false
	}

	recipe.Index = index
	recipe.DishType = unit.DishType.Label
	recipe.Situation = unit.Situation.Label
	recipe.Ingredient = unit.Ingredient.Label
	recipe.Method = unit.Method.Label
	batch.Recipes = append(batch.Recipes, recipe)

	for _, review := range w.extractor.Reviews(content) {
		review.RecipeIndex = index
		batch.Reviews = append(batch.Reviews, review)
	}
	return true
}

// listingURL builds the category listing URL from the unit's four codes.
func (w *Worker) listingURL(unit crawler.WorkUnit) string {
	q := url.Values{}
	q.Set("q", "")
	q.Set("query", "")
	q.Set("cat1", unit.Method.Code)
	q.Set("cat2", unit.Situation.Code)
	q.Set("cat3", unit.Ingredient.Code)
	q.Set("cat4", unit.DishType.Code)
	q.Set("fct", "")
	q.Set("order", "reco")
	q.Set("lastcate", "cat4")
	return w.cfg.BaseURL + "/recipe/list.html?" + q.Encode()
}

// Package store persists merged crawl batches.
//
// A single Merger serializes every append through one lock, so backends
// never see concurrent writers. Backends only append; the Merger owns ID
// assignment.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sikbang/recipe-harvester/internal/crawler"
	"github.com/sikbang/recipe-harvester/internal/metrics"
)

// Backend is the durable side of the Merger. Implementations need no
// internal locking: the Merger guarantees one writer at a time.
type Backend interface {
	AppendRecipes(ctx context.Context, recipes []crawler.Recipe) error
	AppendReviews(ctx context.Context, reviews []crawler.Review) error
	// RecipeCount reports how many recipe rows the backend already holds,
	// used to seed global ID assignment across runs.
	RecipeCount(ctx context.Context) (int64, error)
	Close() error
}

// Merger implements crawler.Merger on top of a Backend. It assigns each
// recipe a globally unique ID under the lock and remaps the batch's
// reviews from their per-unit parent index to that ID.
type Merger struct {
	mu      sync.Mutex
	backend Backend
	logger  *zap.Logger

	nextID int64
	seeded bool

	recipesMerged int64
	reviewsMerged int64
}

// NewMerger creates a Merger over the given backend.
func NewMerger(backend Backend, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{backend: backend, logger: logger}
}

// Merge appends the batch's rows to the backend. An empty batch returns
// immediately without taking the lock. Any backend error is returned to the
// caller unwrapped of retry semantics: persistence failures are not
// retriable here.
func (m *Merger) Merge(ctx context.Context, batch crawler.Batch) error {
	if batch.Empty() {
		return nil
	}
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.seeded {
		count, err := m.backend.RecipeCount(ctx)
		if err != nil {
			return fmt.Errorf("seed recipe id: %w", err)
		}
		m.nextID = count + 1
		m.seeded = true
	}

	// Per-unit indices restart at 1 for every unit, so they collide across
	// units. Assign store-wide IDs here and carry the index along as the
	// within-unit position.
	idByIndex := make(map[int]int64, len(batch.Recipes))
	recipes := make([]crawler.Recipe, len(batch.Recipes))
	for i, r := range batch.Recipes {
		r.ID = m.nextID
		m.nextID++
		idByIndex[r.Index] = r.ID
		recipes[i] = r
	}
	reviews := make([]crawler.Review, len(batch.Reviews))
	for i, rv := range batch.Reviews {
		rv.RecipeID = idByIndex[rv.RecipeIndex]
		reviews[i] = rv
	}

	if err := m.backend.AppendRecipes(ctx, recipes); err != nil {
		return fmt.Errorf("append recipes for %s: %w", batch.Unit.Key(), err)
	}
	if err := m.backend.AppendReviews(ctx, reviews); err != nil {
		return fmt.Errorf("append reviews for %s: %w", batch.Unit.Key(), err)
	}

	m.recipesMerged += int64(len(recipes))
	m.reviewsMerged += int64(len(reviews))
	metrics.ObserveMerge(time.Since(start), len(recipes), len(reviews))
	m.logger.Debug("batch merged",
		zap.String("unit", batch.Unit.Key()),
		zap.Int("recipes", len(recipes)),
		zap.Int("reviews", len(reviews)),
	)
	return nil
}

// RecipesMerged reports the total recipe rows appended so far.
func (m *Merger) RecipesMerged() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recipesMerged
}

// ReviewsMerged reports the total review rows appended so far.
func (m *Merger) ReviewsMerged() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reviewsMerged
}

// Close closes the underlying backend.
func (m *Merger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Close()
}

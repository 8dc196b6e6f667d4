// Package dispatcher fans a run's work units out to a bounded worker pool
// and funnels every resulting batch through the shared merger.
package dispatcher

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sikbang/recipe-harvester/internal/crawler"
	"github.com/sikbang/recipe-harvester/internal/metrics"
)

// Processor turns one work unit into a batch. Implementations must be safe
// for concurrent use; the pool shares one Processor across its goroutines.
type Processor interface {
	Process(ctx context.Context, unit crawler.WorkUnit) (crawler.Batch, error)
}

// Merger extends crawler.Merger with the running row totals the report and
// progress snapshot need.
type Merger interface {
	crawler.Merger
	RecipesMerged() int64
	ReviewsMerged() int64
}

// Config controls the pool size and completion events.
type Config struct {
	// Workers is the pool size. Zero means one goroutine per CPU.
	Workers int
	// Topic, when set alongside a Publisher, receives one completion
	// event per merged unit.
	Topic string
}

// Report summarizes one finished run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Elapsed    time.Duration

	UnitsTotal     int64
	UnitsCompleted int64
	UnitsEmpty     int64

	RecipesMerged int64
	ReviewsMerged int64

	FetchAttempts int64
	FetchRetries  int64
	FetchEmpties  int64
	PagesSkipped  int64
	ItemsSkipped  int64
}

// Snapshot is a point-in-time view of a run, served by the progress API.
type Snapshot struct {
	RunID          string    `json:"run_id"`
	Running        bool      `json:"running"`
	StartedAt      time.Time `json:"started_at"`
	UnitsTotal     int64     `json:"units_total"`
	UnitsCompleted int64     `json:"units_completed"`
	UnitsEmpty     int64     `json:"units_empty"`
	RecipesMerged  int64     `json:"recipes_merged"`
	ReviewsMerged  int64     `json:"reviews_merged"`
}

// unitEvent is the payload published per merged unit.
type unitEvent struct {
	RunID   string `json:"run_id"`
	Unit    string `json:"unit"`
	Recipes int    `json:"recipes"`
	Reviews int    `json:"reviews"`
}

// Dispatcher runs the pool. A Dispatcher is good for one Run at a time.
type Dispatcher struct {
	processor Processor
	merger    Merger
	publisher crawler.Publisher
	stats     *crawler.RunStats
	ids       crawler.IDGenerator
	clock     crawler.Clock
	cfg       Config
	logger    *zap.Logger

	runID          atomic.Value
	running        atomic.Bool
	startedAt      atomic.Value
	unitsTotal     atomic.Int64
	unitsCompleted atomic.Int64
	unitsEmpty     atomic.Int64
}

// New creates a Dispatcher. The publisher may be nil to disable events.
func New(processor Processor, merger Merger, publisher crawler.Publisher, stats *crawler.RunStats,
	ids crawler.IDGenerator, clock crawler.Clock, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		processor: processor,
		merger:    merger,
		publisher: publisher,
		stats:     stats,
		ids:       ids,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes every unit and blocks until the pool drains. A merge
// failure or context cancellation stops the run; the returned Report covers
// whatever completed before the stop.
func (d *Dispatcher) Run(ctx context.Context, units []crawler.WorkUnit) (Report, error) {
	runID, err := d.ids.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("new run id: %w", err)
	}
	start := d.clock.Now()
	d.runID.Store(runID)
	d.startedAt.Store(start)
	d.unitsTotal.Store(int64(len(units)))
	d.unitsCompleted.Store(0)
	d.unitsEmpty.Store(0)
	d.running.Store(true)
	defer d.running.Store(false)

	d.logger.Info("run started",
		zap.String("run_id", runID),
		zap.Int("units", len(units)),
		zap.Int("workers", d.cfg.Workers),
	)

	feed := make(chan crawler.WorkUnit)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(feed)
		for _, unit := range units {
			select {
			case feed <- unit:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			for unit := range feed {
				if err := d.runUnit(gctx, runID, unit); err != nil {
					return err
				}
			}
			return nil
		})
	}

	runErr := g.Wait()

	finished := d.clock.Now()
	report := Report{
		RunID:          runID,
		StartedAt:      start,
		FinishedAt:     finished,
		Elapsed:        finished.Sub(start),
		UnitsTotal:     int64(len(units)),
		UnitsCompleted: d.unitsCompleted.Load(),
		UnitsEmpty:     d.unitsEmpty.Load(),
		RecipesMerged:  d.merger.RecipesMerged(),
		ReviewsMerged:  d.merger.ReviewsMerged(),
	}
	if d.stats != nil {
		report.FetchAttempts = d.stats.FetchAttempts.Load()
		report.FetchRetries = d.stats.FetchRetries.Load()
		report.FetchEmpties = d.stats.FetchEmpties.Load()
		report.PagesSkipped = d.stats.PagesSkipped.Load()
		report.ItemsSkipped = d.stats.ItemsSkipped.Load()
	}
	return report, runErr
}

func (d *Dispatcher) runUnit(ctx context.Context, runID string, unit crawler.WorkUnit) error {
	batch, err := d.processor.Process(ctx, unit)
	if err != nil {
		metrics.ObserveUnit("canceled")
		return err
	}
	if batch.Empty() {
		metrics.ObserveUnit("empty")
		d.unitsEmpty.Add(1)
		d.logProgress(unit, 0, 0)
		return nil
	}
	if err := d.merger.Merge(ctx, batch); err != nil {
		metrics.ObserveUnit("canceled")
		return fmt.Errorf("merge unit %s: %w", unit.Key(), err)
	}
	metrics.ObserveUnit("merged")
	d.logProgress(unit, len(batch.Recipes), len(batch.Reviews))
	d.publishUnit(ctx, runID, batch)
	return nil
}

func (d *Dispatcher) logProgress(unit crawler.WorkUnit, recipes, reviews int) {
	completed := d.unitsCompleted.Add(1)
	d.logger.Info("unit finished",
		zap.String("unit", unit.Key()),
		zap.Int("recipes", recipes),
		zap.Int("reviews", reviews),
		zap.Int64("completed", completed),
		zap.Int64("total", d.unitsTotal.Load()),
	)
}

// publishUnit emits a completion event. Publishing is best effort: a
// failure is logged and the run continues.
func (d *Dispatcher) publishUnit(ctx context.Context, runID string, batch crawler.Batch) {
	if d.publisher == nil || d.cfg.Topic == "" {
		return
	}
	event := unitEvent{
		RunID:   runID,
		Unit:    batch.Unit.Key(),
		Recipes: len(batch.Recipes),
		Reviews: len(batch.Reviews),
	}
	if _, err := d.publisher.Publish(ctx, d.cfg.Topic, event); err != nil {
		d.logger.Warn("publish unit event failed",
			zap.String("unit", batch.Unit.Key()),
			zap.Error(err),
		)
	}
}

// Progress reports the current run's snapshot. Before the first Run it is
// all zeroes.
func (d *Dispatcher) Progress() Snapshot {
	s := Snapshot{
		Running:        d.running.Load(),
		UnitsTotal:     d.unitsTotal.Load(),
		UnitsCompleted: d.unitsCompleted.Load(),
		UnitsEmpty:     d.unitsEmpty.Load(),
	}
	if id, ok := d.runID.Load().(string); ok {
		s.RunID = id
	}
	if t, ok := d.startedAt.Load().(time.Time); ok {
		s.StartedAt = t
	}
	if d.merger != nil {
		s.RecipesMerged = d.merger.RecipesMerged()
		s.ReviewsMerged = d.merger.ReviewsMerged()
	}
	return s
}

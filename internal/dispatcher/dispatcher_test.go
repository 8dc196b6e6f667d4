package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sikbang/recipe-harvester/internal/crawler"
	"github.com/sikbang/recipe-harvester/internal/metrics"
)

func init() {
	metrics.Init()
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

// fakeProcessor yields one recipe per unit, or an empty batch for units in
// the empty set.
type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	empty     map[string]bool
}

func (p *fakeProcessor) Process(ctx context.Context, unit crawler.WorkUnit) (crawler.Batch, error) {
	if err := ctx.Err(); err != nil {
		return crawler.Batch{}, err
	}
	p.mu.Lock()
	p.processed = append(p.processed, unit.Key())
	p.mu.Unlock()

	if p.empty[unit.Key()] {
		return crawler.Batch{Unit: unit}, nil
	}
	return crawler.Batch{
		Unit:    unit,
		Recipes: []crawler.Recipe{{Index: 1, Title: "recipe " + unit.Key()}},
		Reviews: []crawler.Review{{RecipeIndex: 1, Body: "review"}},
	}, nil
}

// fakeMerger records merged unit keys.
type fakeMerger struct {
	mu      sync.Mutex
	merged  []string
	recipes int64
	reviews int64
	failOn  string
}

func (m *fakeMerger) Merge(_ context.Context, batch crawler.Batch) error {
	if batch.Empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && batch.Unit.Key() == m.failOn {
		return errors.New("backend write failed")
	}
	m.merged = append(m.merged, batch.Unit.Key())
	m.recipes += int64(len(batch.Recipes))
	m.reviews += int64(len(batch.Reviews))
	return nil
}

func (m *fakeMerger) RecipesMerged() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recipes
}

func (m *fakeMerger) ReviewsMerged() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reviews
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []any
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.payloads = append(p.payloads, payload)
	return "msg-1", nil
}

func testUnits(n int) []crawler.WorkUnit {
	units := make([]crawler.WorkUnit, 0, n)
	for i := 0; i < n; i++ {
		units = append(units, crawler.WorkUnit{
			Method:     crawler.AxisValue{Label: "끓이기", Code: string(rune('a' + i))},
			Situation:  crawler.AxisValue{Label: "일상", Code: "12"},
			Ingredient: crawler.AxisValue{Label: "육류", Code: "23"},
			DishType:   crawler.AxisValue{Label: "찌개", Code: "55"},
		})
	}
	return units
}

func newTestDispatcher(processor Processor, merger Merger, publisher crawler.Publisher, cfg Config) *Dispatcher {
	return New(processor, merger, publisher, &crawler.RunStats{}, fixedIDs{id: "run-1"},
		fixedClock{t: time.Unix(1700000000, 0).UTC()}, cfg, nil)
}

func TestRunMergesEveryUnitExactlyOnce(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 4, 16} {
		t.Run(map[int]string{1: "serial", 4: "small_pool", 16: "wide_pool"}[workers], func(t *testing.T) {
			t.Parallel()

			units := testUnits(9)
			processor := &fakeProcessor{}
			merger := &fakeMerger{}
			d := newTestDispatcher(processor, merger, nil, Config{Workers: workers})

			report, err := d.Run(context.Background(), units)
			require.NoError(t, err)

			require.ElementsMatch(t, unitKeys(units), merger.merged)
			require.EqualValues(t, 9, report.UnitsTotal)
			require.EqualValues(t, 9, report.UnitsCompleted)
			require.EqualValues(t, 9, report.RecipesMerged)
			require.EqualValues(t, 9, report.ReviewsMerged)
			require.Equal(t, "run-1", report.RunID)
		})
	}
}

func TestRunCountsEmptyUnits(t *testing.T) {
	t.Parallel()

	units := testUnits(4)
	processor := &fakeProcessor{empty: map[string]bool{
		units[1].Key(): true,
		units[3].Key(): true,
	}}
	merger := &fakeMerger{}
	d := newTestDispatcher(processor, merger, nil, Config{Workers: 2})

	report, err := d.Run(context.Background(), units)
	require.NoError(t, err)
	require.EqualValues(t, 4, report.UnitsCompleted)
	require.EqualValues(t, 2, report.UnitsEmpty)
	require.Len(t, merger.merged, 2)
}

func TestRunMergeFailureStopsRun(t *testing.T) {
	t.Parallel()

	units := testUnits(8)
	processor := &fakeProcessor{}
	merger := &fakeMerger{failOn: units[0].Key()}
	d := newTestDispatcher(processor, merger, nil, Config{Workers: 2})

	_, err := d.Run(context.Background(), units)
	require.Error(t, err)
	require.Contains(t, err.Error(), "backend write failed")
	require.False(t, d.Progress().Running)
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDispatcher(&fakeProcessor{}, &fakeMerger{}, nil, Config{Workers: 2})
	_, err := d.Run(ctx, testUnits(4))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunPublishesCompletionEvents(t *testing.T) {
	t.Parallel()

	units := testUnits(3)
	publisher := &fakePublisher{}
	d := newTestDispatcher(&fakeProcessor{}, &fakeMerger{}, publisher, Config{Workers: 1, Topic: "harvest-events"})

	_, err := d.Run(context.Background(), units)
	require.NoError(t, err)
	require.Len(t, publisher.payloads, 3)

	event, ok := publisher.payloads[0].(unitEvent)
	require.True(t, ok)
	require.Equal(t, "run-1", event.RunID)
	require.Equal(t, 1, event.Recipes)
}

func TestRunSurvivesPublishFailures(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{err: errors.New("pubsub unavailable")}
	d := newTestDispatcher(&fakeProcessor{}, &fakeMerger{}, publisher, Config{Workers: 1, Topic: "harvest-events"})

	report, err := d.Run(context.Background(), testUnits(2))
	require.NoError(t, err)
	require.EqualValues(t, 2, report.UnitsCompleted)
}

func TestProgressReflectsFinishedRun(t *testing.T) {
	t.Parallel()

	merger := &fakeMerger{}
	d := newTestDispatcher(&fakeProcessor{}, merger, nil, Config{Workers: 2})

	_, err := d.Run(context.Background(), testUnits(5))
	require.NoError(t, err)

	snap := d.Progress()
	require.Equal(t, "run-1", snap.RunID)
	require.False(t, snap.Running)
	require.EqualValues(t, 5, snap.UnitsTotal)
	require.EqualValues(t, 5, snap.UnitsCompleted)
	require.EqualValues(t, 5, snap.RecipesMerged)
}

func unitKeys(units []crawler.WorkUnit) []string {
	keys := make([]string, 0, len(units))
	for _, u := range units {
		keys = append(keys, u.Key())
	}
	return keys
}

// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal   *prometheus.CounterVec
	fetchRetriesTotal    prometheus.Counter
	fetchEmptiesTotal    prometheus.Counter
	unitsTotal           *prometheus.CounterVec
	activeWorkers        prometheus.Gauge
	mergeDurationSeconds prometheus.Histogram
	rowsMergedTotal      *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_attempts_total",
				Help: "Total fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_fetch_retries_total",
				Help: "Total fetch attempts that were retried after a failure.",
			},
		)

		fetchEmptiesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_fetch_empties_total",
				Help: "Total fetches that ended in the definitive empty outcome.",
			},
		)

		unitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_units_total",
				Help: "Total work units finished, labeled by result.",
			},
			[]string{"result"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_workers",
				Help: "Number of workers currently processing a unit.",
			},
		)

		mergeDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_merge_duration_seconds",
				Help:    "Histogram of store merge durations.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		)

		rowsMergedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_rows_merged_total",
				Help: "Total rows merged into the stores, labeled by store.",
			},
			[]string{"store"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt with its outcome
// ("success", "failure" or "empty").
func ObserveFetch(outcome string) {
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts a retried fetch attempt.
func ObserveRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveEmpty counts a definitive empty fetch outcome.
func ObserveEmpty() {
	fetchEmptiesTotal.Inc()
}

// ObserveUnit increments the unit counter for the given result
// ("merged", "empty" or "canceled").
func ObserveUnit(result string) {
	unitsTotal.WithLabelValues(result).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveMerge records the duration of one merge and the rows it appended.
func ObserveMerge(d time.Duration, recipes, reviews int) {
	mergeDurationSeconds.Observe(d.Seconds())
	if recipes > 0 {
		rowsMergedTotal.WithLabelValues("recipes").Add(float64(recipes))
	}
	if reviews > 0 {
		rowsMergedTotal.WithLabelValues("reviews").Add(float64(reviews))
	}
}

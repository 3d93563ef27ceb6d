// Package metrics holds the Prometheus collectors for a harvest run. The run
// is a batch job, so collectors are flushed to a node-exporter textfile
// instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace prefixes every metric name.
	Namespace = "watchdxg"
)

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeParsed    = "parsed"
	OutcomeRejected  = "rejected"
	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Metrics holds every collector of a run, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Extraction
	AttemptsTotal      *prometheus.CounterVec
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	PagesInFlight      prometheus.Gauge

	// Transformation
	ProfilesTotal *prometheus.CounterVec

	// Persistence
	PostsTotal        *prometheus.CounterVec
	PersistenceErrors prometheus.Counter

	// Run
	HandlesDiscovered prometheus.Gauge
	HandlesQueued     prometheus.Gauge
	LastRunTimestamp  prometheus.Gauge
	LastRunDuration   prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.AttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "extract",
			Name:      "attempts_total",
			Help:      "Page extraction attempts by outcome",
		},
		[]string{"outcome"},
	)
	m.ExtractionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "extract",
			Name:      "handles_total",
			Help:      "Handles extracted or given up on after all retries",
		},
		[]string{"outcome"},
	)
	m.ExtractionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "extract",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of a single extraction attempt",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~64s
		},
	)
	m.PagesInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "extract",
			Name:      "pages_in_flight",
			Help:      "Extraction attempts currently holding the admission gate",
		},
	)

	m.ProfilesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transform",
			Name:      "profiles_total",
			Help:      "Profiles parsed or rejected by the transformer",
		},
		[]string{"outcome"},
	)

	m.PostsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "posts_total",
			Help:      "Post insert outcomes",
		},
		[]string{"outcome"},
	)
	m.PersistenceErrors = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Database failures other than duplicate posts",
		},
	)

	m.HandlesDiscovered = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "handles_discovered",
			Help:      "Follower handles read from the followers page in the last run",
		},
	)
	m.HandlesQueued = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "handles_queued",
			Help:      "Handles left for extraction after the known-handle filter",
		},
	)
	m.LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		},
	)
	m.LastRunDuration = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run",
		},
	)

	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAttempt records one extraction attempt.
func (m *Metrics) ObserveAttempt(d time.Duration, err error) {
	m.ExtractionDuration.Observe(d.Seconds())
	if err != nil {
		m.AttemptsTotal.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	m.AttemptsTotal.WithLabelValues(OutcomeSuccess).Inc()
}

// FinishRun stamps the run's end time and duration.
func (m *Metrics) FinishRun(started time.Time) {
	m.LastRunTimestamp.SetToCurrentTime()
	m.LastRunDuration.Set(time.Since(started).Seconds())
}

// WriteTextfile writes every collector to path in the text exposition
// format. The write goes through a temporary file and a rename.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Package metrics exposes Prometheus collectors for the discovery service.
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
	domainsProcessedTotal *prometheus.CounterVec
	retriesTotal          prometheus.Counter
	driftDetectedTotal    prometheus.Counter
	activePipelines       prometheus.Gauge
	fetchDurationSeconds  *prometheus.HistogramVec
	patternsByType        *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		domainsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchscout_domains_processed_total",
				Help: "Total domain pipelines finished, labeled by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		retriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "searchscout_retries_total",
				Help: "Total retry attempts scheduled across all domains.",
			},
		)

		driftDetectedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "searchscout_drift_detected_total",
				Help: "Total verified domains whose stored pattern no longer matched.",
			},
		)

		activePipelines = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "searchscout_active_pipelines",
				Help: "Domain pipelines currently executing.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchscout_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by fetch kind.",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		)

		patternsByType = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchscout_patterns_total",
				Help: "Total patterns persisted, labeled by pattern type.",
			},
			[]string{"pattern_type"},
		)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveDomainProcessed counts one finished domain pipeline.
func ObserveDomainProcessed(mode, outcome string) {
	Init()
	domainsProcessedTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveRetry counts one scheduled retry.
func ObserveRetry() {
	Init()
	retriesTotal.Inc()
}

// ObserveDrift counts one drift detection.
func ObserveDrift() {
	Init()
	driftDetectedTotal.Inc()
}

// PipelineStarted increments the in-flight pipeline gauge.
func PipelineStarted() {
	Init()
	activePipelines.Inc()
}

// PipelineFinished decrements the in-flight pipeline gauge.
func PipelineFinished() {
	Init()
	activePipelines.Dec()
}

// ObserveFetchDuration records a fetch latency sample.
func ObserveFetchDuration(kind string, d time.Duration) {
	Init()
	fetchDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// ObservePatternPersisted counts one persisted pattern.
func ObservePatternPersisted(patternType string) {
	Init()
	patternsByType.WithLabelValues(patternType).Inc()
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the wind
// analysis pipeline.
type Metrics struct {
	ObservationsNormalized prometheus.Counter
	ConversionErrors       prometheus.Counter
	RecordsAggregated      prometheus.Counter

	SourcesSucceeded prometheus.Counter
	SourcesFailed    prometheus.Counter
	FetchRetries     prometheus.Counter

	FitsComputed prometheus.Counter
	FitFailures  *prometheus.CounterVec // labels: reason={insufficient_sample,divergence}

	SourceDuration prometheus.Histogram
	RunActive      prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ObservationsNormalized,
		m.ConversionErrors,
		m.RecordsAggregated,
		m.SourcesSucceeded,
		m.SourcesFailed,
		m.FetchRetries,
		m.FitsComputed,
		m.FitFailures,
		m.SourceDuration,
		m.RunActive,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windstats",
			Name:      "observations_normalized_total",
			Help:      "Raw observations successfully converted to canonical units.",
		}),
		ConversionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windstats",
			Name:      "conversion_errors_total",
			Help:      "Observations dropped because their unit tag was unrecognized.",
		}),
		RecordsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windstats",
			Name:      "daily_records_total",
			Help:      "Daily records produced by the aggregator.",
		}),
		SourcesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windstats",
			Name:      "sources_succeeded_total",
			Help:      "Per-site source pipelines that completed.",
		}),
		SourcesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windstats",
			Name:      "sources_failed_total",
			Help:      "Per-site source pipelines excluded after exhausting retries.",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windstats",
			Name:      "fetch_retries_total",
			Help:      "Fetcher attempts beyond the first.",
		}),
		FitsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windstats",
			Name:      "fits_computed_total",
			Help:      "Extreme-value fits that produced a return-level table.",
		}),
		FitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "windstats",
			Name:      "fit_failures_total",
			Help:      "Extreme-value fits that failed, by reason.",
		}, []string{"reason"}),
		SourceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "windstats",
			Name:      "source_pipeline_duration_seconds",
			Help:      "Duration of one source's fetch-normalize-aggregate-assess pipeline.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "windstats",
			Name:      "run_active",
			Help:      "1 while a site analysis run is in flight, 0 otherwise.",
		}),
	}
}

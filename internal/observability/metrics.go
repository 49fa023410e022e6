package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Provider fan-out metrics.
	ProviderFetches       *prometheus.CounterVec   // labels: provider, outcome={success,error,timeout,rate_limited}
	ProviderFetchDuration *prometheus.HistogramVec // labels: provider
	ProviderEvents        *prometheus.CounterVec   // labels: provider
	ProviderDropped       *prometheus.CounterVec   // labels: provider

	// Fusion metrics.
	EventsBeforeFusion prometheus.Counter
	EventsAfterFusion  prometheus.Counter
	DuplicatesRemoved  prometheus.Counter

	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	AssessmentDuration prometheus.Histogram

	// Ingest loop metrics.
	IngestRunning   prometheus.Gauge
	IngestCycles    *prometheus.CounterVec // labels: outcome={success,error}
	EventsStored    prometheus.Counter
	EventsPublished prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fetches_total",
			Help:      "Provider fetch attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_duration_seconds",
			Help:      "Provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		ProviderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_events_total",
			Help:      "Normalized events returned by each provider.",
		}, []string{"provider"}),
		ProviderDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_dropped_records_total",
			Help:      "Provider records discarded during normalization.",
		}, []string{"provider"}),
		EventsBeforeFusion: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_input_events_total",
			Help:      "Events entering deduplication.",
		}),
		EventsAfterFusion: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_output_events_total",
			Help:      "Events remaining after deduplication.",
		}),
		DuplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_duplicates_total",
			Help:      "Reports identified as duplicates of an accepted event.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Fused-result cache lookups by result.",
		}, []string{"result"}),
		AssessmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "Duration of a full catalog risk assessment, fetch included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_running",
			Help:      "1 when the ingest loop is active, 0 when shut down.",
		}),
		IngestCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_cycles_total",
			Help:      "Completed ingest cycles by outcome.",
		}, []string{"outcome"}),
		EventsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_stored_total",
			Help:      "Fused events upserted into the event store.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Fused events written to the sink topic.",
		}),
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderFetches,
		m.ProviderFetchDuration,
		m.ProviderEvents,
		m.ProviderDropped,
		m.EventsBeforeFusion,
		m.EventsAfterFusion,
		m.DuplicatesRemoved,
		m.CacheLookups,
		m.AssessmentDuration,
		m.IngestRunning,
		m.IngestCycles,
		m.EventsStored,
		m.EventsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alertzarr"

// Metrics holds the Prometheus counters, histograms, and gauges shared by the
// listener, subscriber, and autopilot binaries.
type Metrics struct {
	// Feed listener.
	FeedFetches           *prometheus.CounterVec // labels: feed, outcome={success,error}
	AlertsSeen            *prometheus.CounterVec // labels: outcome={new,duplicate,invalid}
	EventsPublished       *prometheus.CounterVec // labels: outcome={success,error}
	ListenerCycleDuration prometheus.Histogram

	// Event subscriber.
	MessagesConsumed    prometheus.Counter
	MessagesSkipped     *prometheus.CounterVec // labels: reason={malformed,routing_key,duplicate}
	WorkflowSubmissions *prometheus.CounterVec // labels: outcome={success,error}
	PipelineRunning     prometheus.Gauge

	// Conversion and cataloging.
	SceneSearches      *prometheus.CounterVec   // labels: outcome={success,error}
	Conversions        *prometheus.CounterVec   // labels: mode={real,simulate}, outcome={success,error}
	ConversionDuration *prometheus.HistogramVec // labels: outcome
	ConversionBytes    prometheus.Counter
	CatalogItems       *prometheus.CounterVec // labels: outcome={success,error}

	// Gatherer is the registry the collectors above are registered on.
	Gatherer prometheus.Gatherer
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Alert feed fetches by feed and outcome.",
		}, []string{"feed", "outcome"}),
		AlertsSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_seen_total",
			Help:      "Alerts read from feeds by deduplication outcome.",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Alert events written to the alert topic.",
		}, []string{"outcome"}),
		ListenerCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "listener_cycle_duration_seconds",
			Help:      "Duration of one pass over every configured feed.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the alert topic.",
		}),
		MessagesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_skipped_total",
			Help:      "Messages acknowledged without submitting a workflow.",
		}, []string{"reason"}),
		WorkflowSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_submissions_total",
			Help:      "Workflow submissions by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the subscriber is consuming, 0 when shut down.",
		}),
		SceneSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scene_searches_total",
			Help:      "Scene catalog searches by outcome.",
		}, []string{"outcome"}),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversion attempts by mode and outcome.",
		}, []string{"mode", "outcome"}),
		ConversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of a conversion attempt.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 30, 60, 300, 900, 3600},
		}, []string{"outcome"}),
		ConversionBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversion_bytes_total",
			Help:      "Bytes written to the GeoZarr bucket.",
		}),
		CatalogItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_items_total",
			Help:      "Catalog records written to the STAC bucket.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FeedFetches,
		m.AlertsSeen,
		m.EventsPublished,
		m.ListenerCycleDuration,
		m.MessagesConsumed,
		m.MessagesSkipped,
		m.WorkflowSubmissions,
		m.PipelineRunning,
		m.SceneSearches,
		m.Conversions,
		m.ConversionDuration,
		m.ConversionBytes,
		m.CatalogItems,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	m.Gatherer = prometheus.DefaultGatherer
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	m.Gatherer = reg
	return m
}

// Outcome maps an error to the "success"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forecasts_viz"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast refresh pipeline and chart rendering.
type Metrics struct {
	Fetches                *prometheus.CounterVec // labels: model, outcome={success,error}
	TransformErrors        *prometheus.CounterVec // labels: model
	TransformDuration      prometheus.Histogram
	UnknownVariants        *prometheus.GaugeVec // labels: model
	ExcludedIncidenceDates *prometheus.GaugeVec // labels: model
	SnapshotsPublished     prometheus.Counter
	PipelineRunning        prometheus.Gauge

	// Chart metrics.
	ChartRenders *prometheus.CounterVec // labels: graph, format={png,panel,html}
	ChartCache   *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Model payload fetches by model and outcome.",
		}, []string{"model", "outcome"}),
		TransformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Payloads rejected by the transformer.",
		}, []string{"model"}),
		TransformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Duration of a single payload transform.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		UnknownVariants: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unknown_variants",
			Help:      "Variants in the latest snapshot that have no registry entry.",
		}, []string{"model"}),
		ExcludedIncidenceDates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "excluded_incidence_dates",
			Help:      "Location-date columns dropped from stacked incidence in the latest snapshot.",
		}, []string{"model"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Snapshots written to the sink topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		ChartRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_renders_total",
			Help:      "Charts rendered by graph and output format.",
		}, []string{"graph", "format"}),
		ChartCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_cache_total",
			Help:      "Rendered chart cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates all metrics and registers them with reg.
// One-shot commands pass a private prometheus.NewRegistry().
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.Fetches,
		m.TransformErrors,
		m.TransformDuration,
		m.UnknownVariants,
		m.ExcludedIncidenceDates,
		m.SnapshotsPublished,
		m.PipelineRunning,
		m.ChartRenders,
		m.ChartCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

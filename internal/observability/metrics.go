package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	FilesDiscovered  *prometheus.CounterVec // labels: level, product
	FilesDeduped     *prometheus.CounterVec // labels: level, product
	Downloads        *prometheus.CounterVec // labels: outcome={success,error}
	Renders          *prometheus.CounterVec // labels: outcome={success,error}
	MergeConflicts   prometheus.Counter
	ArtifactsDeleted prometheus.Counter
	PipelineRunning  prometheus.Gauge

	ProductRunDuration *prometheus.HistogramVec // labels: level, product
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesDiscovered,
		m.FilesDeduped,
		m.Downloads,
		m.Renders,
		m.MergeConflicts,
		m.ArtifactsDeleted,
		m.PipelineRunning,
		m.ProductRunDuration,
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
		FilesDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexrad_etl",
			Name:      "files_discovered_total",
			Help:      "Source files found in the archive time window.",
		}, []string{"level", "product"}),
		FilesDeduped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexrad_etl",
			Name:      "files_deduped_total",
			Help:      "Discovered files dropped because their normalized key was already indexed.",
		}, []string{"level", "product"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexrad_etl",
			Name:      "downloads_total",
			Help:      "Archive downloads by outcome.",
		}, []string{"outcome"}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexrad_etl",
			Name:      "renders_total",
			Help:      "Decode/render invocations by outcome.",
		}, []string{"outcome"}),
		MergeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nexrad_etl",
			Name:      "merge_conflicts_total",
			Help:      "Conditional metadata writes rejected and retried.",
		}),
		ArtifactsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nexrad_etl",
			Name:      "artifacts_deleted_total",
			Help:      "Stale rendered artifacts removed by garbage collection.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nexrad_etl",
			Name:      "pipeline_running",
			Help:      "1 while an ingestion run is active, 0 otherwise.",
		}),
		ProductRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexrad_etl",
			Name:      "product_run_duration_seconds",
			Help:      "Duration of a complete discover-download-render-merge cycle per product.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"level", "product"}),
	}
}

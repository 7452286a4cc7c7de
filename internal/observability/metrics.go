package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one airstat invocation.
type Metrics struct {
	Registry *prometheus.Registry

	AnalysesTotal       *prometheus.CounterVec   // labels: kind, outcome={ok,error}
	AnalysisDuration    *prometheus.HistogramVec // labels: kind
	MergedRows          prometheus.Gauge
	SourceRows          *prometheus.GaugeVec // labels: pollutant
	BootstrapIterations prometheus.Counter
	StageCache          *prometheus.CounterVec // labels: result={hit,miss,rebuild}
}

// NewMetrics creates all collectors and registers them on a private registry.
// Batch runs dump the registry with WriteTextfile rather than serving it.
func NewMetrics() *Metrics {
	m := newCollectors()
	m.Registry = prometheus.NewRegistry()
	m.Registry.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.MergedRows,
		m.SourceRows,
		m.BootstrapIterations,
		m.StageCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering anything.
func NewMetricsForTesting() *Metrics {
	m := newCollectors()
	m.Registry = prometheus.NewRegistry()
	return m
}

func newCollectors() *Metrics {
	return &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airstat",
			Name:      "analyses_total",
			Help:      "Analyses run, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airstat",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a single analysis call.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"kind"}),
		MergedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airstat",
			Name:      "merged_rows",
			Help:      "Rows in the most recently built or loaded merged table.",
		}),
		SourceRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "airstat",
			Name:      "source_rows",
			Help:      "Rows read from each pollutant source file.",
		}, []string{"pollutant"}),
		BootstrapIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airstat",
			Name:      "bootstrap_iterations_total",
			Help:      "Bootstrap resamples drawn.",
		}),
		StageCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airstat",
			Name:      "stage_cache_total",
			Help:      "Merge stage cache decisions.",
		}, []string{"result"}),
	}
}

// Observe records one analysis outcome and its duration.
func (m *Metrics) Observe(kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AnalysesTotal.WithLabelValues(kind, outcome).Inc()
	m.AnalysisDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the registry in the text exposition format, suitable
// for a node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

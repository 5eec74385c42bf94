package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the pipeline service.
// ⭐ SSOT: 메트릭 정의는 여기서만
type Metrics struct {
	PipelineRuns     *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	SignalsGenerated *prometheus.CounterVec
	registry         *prometheus.Registry
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regimeflow",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome (success, failed, not_ready).",
		}, []string{"status"}),
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "regimeflow",
			Name:      "pipeline_step_duration_seconds",
			Help:      "Duration of each pipeline step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		SignalsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regimeflow",
			Name:      "signals_generated_total",
			Help:      "Signals generated by type.",
		}, []string{"signal"}),
		registry: registry,
	}
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

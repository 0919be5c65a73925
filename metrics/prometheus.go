package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rawview"

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	renders         *prom.CounterVec
	classifications *prom.CounterVec
	references      *prom.CounterVec
	cacheResults    *prom.CounterVec
	fetchDuration   *prom.HistogramVec
}

// NewPrometheusRecorder creates the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		renders: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "documents_rendered_total",
			Help:      "Documents rendered by outcome",
		}, []string{"outcome"}),
		classifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Source URL classifications by result",
		}, []string{"result"}),
		references: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "references_resolved_total",
			Help:      "References resolved by kind and rule",
		}, []string{"kind", "rule"}),
		cacheResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_results_total",
			Help:      "Document cache lookups by state",
		}, []string{"state"}),
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream document fetch duration",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
	}
	reg.MustRegister(pr.renders, pr.classifications, pr.references, pr.cacheResults, pr.fetchDuration)
	return pr
}

func (pr *PrometheusRecorder) IncRender(outcome Outcome) {
	pr.renders.WithLabelValues(string(outcome)).Inc()
}

func (pr *PrometheusRecorder) IncClassification(recognized bool) {
	result := "unrecognized"
	if recognized {
		result = "recognized"
	}
	pr.classifications.WithLabelValues(result).Inc()
}

func (pr *PrometheusRecorder) IncReference(kind, rule string) {
	pr.references.WithLabelValues(kind, rule).Inc()
}

func (pr *PrometheusRecorder) IncCacheResult(state string) {
	pr.cacheResults.WithLabelValues(state).Inc()
}

func (pr *PrometheusRecorder) ObserveFetchDuration(d time.Duration, success bool) {
	result := "error"
	if success {
		result = "success"
	}
	pr.fetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// HTTPHandler serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

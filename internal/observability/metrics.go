package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "familycal"

// Metrics collects resolver, extraction and HTTP metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	resolutions     *prometheus.CounterVec
	extractions     *prometheus.CounterVec
	llmDuration     prometheus.Histogram
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates a metrics collector on its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolved assistant messages by action.",
		}, []string{"action"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Completion-service extractions by outcome.",
		}, []string{"outcome"}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of completion-service calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(m.resolutions, m.extractions, m.llmDuration, m.requestDuration)
	return m
}

// Global metrics instance.
var globalMetrics = NewMetrics()

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordResolution counts a resolved action.
func (m *Metrics) RecordResolution(action string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(action).Inc()
}

// RecordExtraction counts an extraction outcome and its latency.
func (m *Metrics) RecordExtraction(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
	m.llmDuration.Observe(duration.Seconds())
}

// RecordRequest records an API request.
func (m *Metrics) RecordRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

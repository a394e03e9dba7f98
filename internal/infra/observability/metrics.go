package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the portal BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	uploadsTotal     *prometheus.CounterVec
	compressionRatio prometheus.Histogram
	stageRequests    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imigra_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imigra_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imigra_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imigra_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		uploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imigra_document_uploads_total",
				Help: "Total document uploads by outcome.",
			},
			[]string{"outcome"},
		),
		compressionRatio: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "imigra_compression_ratio",
				Help:    "Compressed/original size ratio of stored files.",
				Buckets: []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1.0},
			},
		),
		stageRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imigra_stage_requests_total",
				Help: "Total stage-bucket computations served, by view.",
			},
			[]string{"view"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrUpload counts a document upload by outcome
// (stored, replaced, rejected_type, in_flight, error).
func (m *Metrics) IncrUpload(outcome string) {
	m.uploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCompressionRatio records compressed/original for a stored file.
func (m *Metrics) ObserveCompressionRatio(ratio float64) {
	m.compressionRatio.Observe(ratio)
}

// IncrStageRequest counts a stage-bucket computation (client or staff view).
func (m *Metrics) IncrStageRequest(view string) {
	m.stageRequests.WithLabelValues(view).Inc()
}

// UploadCount returns the cumulative upload counter for an outcome.
// Used by tests asserting on pipeline outcomes.
func (m *Metrics) UploadCount(outcome string) float64 {
	return getCounterValue(m.uploadsTotal, outcome)
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

package observability

import (
	"time"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Enrichment outcomes used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeAbandoned = "abandoned"
)

// Metrics holds all Prometheus metrics for the enricher.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	enrichments     *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	storedRecords   prometheus.Gauge
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
				Name:    "cnpj_operation_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		enrichments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cnpj_enrichments_total",
				Help: "Enrichment submissions by outcome.",
			},
			[]string{"outcome"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cnpj_external_errors_total",
				Help: "Total errors from the enrichment provider.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cnpj_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cnpj_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		storedRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cnpj_stored_records",
				Help: "Number of records currently held by the store.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrEnrichment counts one enrichment submission.
func (m *Metrics) IncrEnrichment(outcome string) {
	m.enrichments.WithLabelValues(outcome).Inc()
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

// SetStoredRecords publishes the current store size.
func (m *Metrics) SetStoredRecords(n int) {
	m.storedRecords.Set(float64(n))
}

// GetEnrichmentSnapshot summarizes the cumulative counters for the
// GET /v1/metrics/enrichment endpoint.
func (m *Metrics) GetEnrichmentSnapshot() *domain.EnrichmentMetrics {
	succeeded := getCounterValue(m.enrichments, OutcomeSuccess)
	failed := getCounterValue(m.enrichments, OutcomeError) +
		getCounterValue(m.enrichments, OutcomeAbandoned)
	duplicates := getCounterValue(m.enrichments, OutcomeDuplicate)
	invalid := getCounterValue(m.enrichments, OutcomeInvalid)
	total := succeeded + failed + duplicates + invalid

	hits := getCounterValue(m.cacheHits, "lookup")
	misses := getCounterValue(m.cacheMisses, "lookup")

	errorRate := float64(0)
	if total > 0 {
		errorRate = failed / total
	}
	cacheHitRate := float64(0)
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.EnrichmentMetrics{
		TotalEnrichments: int64(total),
		Succeeded:        int64(succeeded),
		Failed:           int64(failed),
		Duplicates:       int64(duplicates),
		ErrorRate:        errorRate,
		CacheHitRate:     cacheHitRate,
		StoredRecords:    int64(getGaugeValue(m.storedRecords)),
		Period:           "all_time",
	}
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

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil && m.Gauge.Value != nil {
		return *m.Gauge.Value
	}
	return 0
}

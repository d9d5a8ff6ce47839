// Package metrics provides Prometheus metrics for the engagement engine.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus metric the service exposes.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  prometheus.Registerer

	// Fetcher metrics
	fetchPages       *prometheus.CounterVec
	fetchRows        *prometheus.CounterVec
	fetchErrors      *prometheus.CounterVec
	rateLimitRetries *prometheus.CounterVec

	// Job metrics
	refreshRuns      *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	resetRuns        *prometheus.CounterVec
	resetDuration    prometheus.Histogram
	courseLoadErrors prometheus.Counter

	// Dataset health
	loaded      prometheus.Gauge
	termCount   prometheus.Gauge
	bucketCount prometheus.Gauge

	// Cache metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager on a custom registry to avoid default Go metrics.
var (
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry
	globalManager  *Manager                   //nolint:gochecknoglobals // singleton manager
)

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "engage",
		subsystem: "engine",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.fetchPages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "fetch_pages_total",
		Help: "Report pages fetched from the analytics source",
	}, []string{"query_id"})

	m.fetchRows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "fetch_rows_total",
		Help: "Report rows accumulated across completed fetches",
	}, []string{"query_id"})

	m.fetchErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "fetch_errors_total",
		Help: "Fetches that failed or returned partial results",
	}, []string{"query_id"})

	m.rateLimitRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "rate_limit_retries_total",
		Help: "Page retries caused by 429 responses",
	}, []string{"query_id"})

	m.refreshRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "refresh_runs_total",
		Help: "Incremental refresh runs by outcome",
	}, []string{"outcome"})

	m.refreshDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "refresh_duration_seconds",
		Help:    "Duration of incremental refresh runs",
		Buckets: m.buckets,
	})

	m.resetRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "full_reset_runs_total",
		Help: "Full reset runs by outcome",
	}, []string{"outcome"})

	m.resetDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "full_reset_duration_seconds",
		Help:    "Duration of full reset runs",
		Buckets: m.buckets,
	})

	m.courseLoadErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "course_load_errors_total",
		Help: "Per-course load failures swallowed during bulk loads",
	})

	m.loaded = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dataset_loaded",
		Help: "1 once the background full load has completed",
	})

	m.termCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dataset_terms",
		Help: "Terms currently held in the dataset store",
	})

	m.bucketCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dataset_buckets",
		Help: "Course buckets currently held in the dataset store",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cache_hits_total",
		Help: "Derived-payload cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cache_misses_total",
		Help: "Derived-payload cache misses",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request latency by endpoint and method",
		Buckets: m.buckets,
	}, []string{"endpoint", "method"})
}

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers against the global manager.

// RecordFetchPage counts one fetched report page.
func RecordFetchPage(queryID int) {
	globalManager.fetchPages.WithLabelValues(strconv.Itoa(queryID)).Inc()
}

// RecordFetchRows counts rows returned by a completed fetch.
func RecordFetchRows(queryID, rows int) {
	globalManager.fetchRows.WithLabelValues(strconv.Itoa(queryID)).Add(float64(rows))
}

// RecordFetchError counts a failed or partial fetch.
func RecordFetchError(queryID int) {
	globalManager.fetchErrors.WithLabelValues(strconv.Itoa(queryID)).Inc()
}

// RecordRateLimitRetry counts one 429-triggered page retry.
func RecordRateLimitRetry(queryID int) {
	globalManager.rateLimitRetries.WithLabelValues(strconv.Itoa(queryID)).Inc()
}

// RecordRefreshRun counts a refresh run with its outcome label.
func RecordRefreshRun(outcome string, seconds float64) {
	globalManager.refreshRuns.WithLabelValues(outcome).Inc()
	globalManager.refreshDuration.Observe(seconds)
}

// RecordResetRun counts a full reset run with its outcome label.
func RecordResetRun(outcome string, seconds float64) {
	globalManager.resetRuns.WithLabelValues(outcome).Inc()
	globalManager.resetDuration.Observe(seconds)
}

// RecordCourseLoadError counts one swallowed per-course load failure.
func RecordCourseLoadError() {
	globalManager.courseLoadErrors.Inc()
}

// UpdateLoaded publishes the loaded flag.
func UpdateLoaded(loaded bool) {
	if loaded {
		globalManager.loaded.Set(1)
		return
	}
	globalManager.loaded.Set(0)
}

// UpdateDatasetSize publishes term and bucket counts.
func UpdateDatasetSize(terms, buckets int) {
	globalManager.termCount.Set(float64(terms))
	globalManager.bucketCount.Set(float64(buckets))
}

// RecordCacheHit counts a derived-payload cache hit.
func RecordCacheHit() { globalManager.cacheHits.Inc() }

// RecordCacheMiss counts a derived-payload cache miss.
func RecordCacheMiss() { globalManager.cacheMisses.Inc() }

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration observes one HTTP request latency in ms.
func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(ms)
}

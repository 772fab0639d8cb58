// Package metrics provides Prometheus metrics for the dayflow pipeline and API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector used by the process.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingest
	recordsRead        prometheus.Counter
	recordsRemapped    prometheus.Counter
	recordsDropped     prometheus.Counter
	malformedTimestamp prometheus.Counter
	daysAssigned       prometheus.Gauge
	daysDiscretized    prometheus.Counter

	// Block file
	blockBytesWritten prometheus.Counter
	blockBytesRead    prometheus.Counter

	// Model
	transitionsCounted prometheus.Counter
	samplesDrawn       prometheus.Counter
	sampleFallbacks    prometheus.Counter
	forecastsProduced  *prometheus.CounterVec
	modelsSaved        prometheus.Counter

	// Stages
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec

	// Workers
	workerActiveCount prometheus.Gauge
	workerJobLatency  prometheus.Histogram
	workerErrors      prometheus.Counter

	// Repository
	repositoryQueryLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "dayflow",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.recordsRead = m.counter("records_read_total", "Raw survey rows read")
	m.recordsRemapped = m.counter("records_remapped_total", "Rows normalized into the compact taxonomy")
	m.recordsDropped = m.counter("records_dropped_total", "Rows dropped because their activity code has no category")
	m.malformedTimestamp = m.counter("malformed_timestamps_total", "Rows rejected for an unparseable clock time")
	m.daysAssigned = m.gauge("days_assigned", "Distinct days in the last day id assignment")
	m.daysDiscretized = m.counter("days_discretized_total", "Days converted into block arrays")

	m.blockBytesWritten = m.counter("block_file_bytes_written_total", "Bytes written to block files")
	m.blockBytesRead = m.counter("block_file_bytes_read_total", "Bytes read from block files")

	m.transitionsCounted = m.counter("transitions_counted_total", "Block-to-block transitions accumulated into count grids")
	m.samplesDrawn = m.counter("samples_drawn_total", "Next-category samples drawn")
	m.sampleFallbacks = m.counter("sample_fallbacks_total", "Samples resolved by the rounding fallback")
	m.forecastsProduced = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("forecasts_produced_total"),
		Help:        "Forecasts produced by strategy",
		ConstLabels: m.customLabels,
	}, []string{"strategy"})
	m.modelsSaved = m.counter("models_saved_total", "Transition models persisted")

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stage_duration_milliseconds"),
		Help:        "Pipeline stage duration in milliseconds",
		Buckets:     prometheus.ExponentialBuckets(1, 4, 10),
		ConstLabels: m.customLabels,
	}, []string{"stage"})
	m.stageErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stage_errors_total"),
		Help:        "Pipeline stage failures by stage and kind",
		ConstLabels: m.customLabels,
	}, []string{"stage", "kind"})

	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently running batch jobs")
	m.workerJobLatency = m.histogram("worker_job_latency_milliseconds", "Latency of a single batch job")
	m.workerErrors = m.counter("worker_errors_total", "Batch jobs that returned an error")

	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Model store query latency")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_errors_total"),
		Help:        "HTTP errors by endpoint, method and type",
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is the suggested period for gauge refresh loops.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Ingest

func RecordRecordsRead(n int) {
	if globalManager.enabled {
		globalManager.recordsRead.Add(float64(n))
	}
}

func RecordRecordsRemapped(n int) {
	if globalManager.enabled {
		globalManager.recordsRemapped.Add(float64(n))
	}
}

func RecordRecordsDropped(n int) {
	if globalManager.enabled {
		globalManager.recordsDropped.Add(float64(n))
	}
}

func RecordMalformedTimestamp() {
	if globalManager.enabled {
		globalManager.malformedTimestamp.Inc()
	}
}

func UpdateDaysAssigned(n int) {
	if globalManager.enabled {
		globalManager.daysAssigned.Set(float64(n))
	}
}

func RecordDaysDiscretized(n int) {
	if globalManager.enabled {
		globalManager.daysDiscretized.Add(float64(n))
	}
}

// Block file

func RecordBlockBytesWritten(n int64) {
	if globalManager.enabled {
		globalManager.blockBytesWritten.Add(float64(n))
	}
}

func RecordBlockBytesRead(n int64) {
	if globalManager.enabled {
		globalManager.blockBytesRead.Add(float64(n))
	}
}

// Model

func RecordTransitionsCounted(n int) {
	if globalManager.enabled {
		globalManager.transitionsCounted.Add(float64(n))
	}
}

func RecordSampleDrawn() {
	if globalManager.enabled {
		globalManager.samplesDrawn.Inc()
	}
}

func RecordSampleFallback() {
	if globalManager.enabled {
		globalManager.sampleFallbacks.Inc()
	}
}

func RecordForecastsProduced(strategy string, n int) {
	if globalManager.enabled {
		globalManager.forecastsProduced.WithLabelValues(strategy).Add(float64(n))
	}
}

func RecordModelSaved() {
	if globalManager.enabled {
		globalManager.modelsSaved.Inc()
	}
}

// Stages

func RecordStageDuration(stage string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.stageDuration.WithLabelValues(stage).Observe(latencyMs)
	}
}

func RecordStageError(stage, kind string) {
	if globalManager.enabled {
		globalManager.stageErrors.WithLabelValues(stage, kind).Inc()
	}
}

// Workers

func UpdateWorkerActiveCount(count int) {
	if globalManager.enabled {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

func RecordWorkerJobLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.workerJobLatency.Observe(latencyMs)
	}
}

func RecordWorkerError() {
	if globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// Repository

func RecordRepositoryQueryLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.repositoryQueryLatency.Observe(latencyMs)
	}
}

// HTTP

func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System

func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. It must be called before recording starts, typically once at
// process start-up.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

// RefreshInterval is the gauge refresh period of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Since returns the milliseconds elapsed since start, for duration helpers.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// Package metrics provides Prometheus metrics for the Order of Merit service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Engine metrics
	standingsComputed *prometheus.CounterVec
	standingsLatency  prometheus.Histogram
	eventSources      *prometheus.CounterVec
	eventsExcluded    *prometheus.CounterVec
	malformedRows     prometheus.Counter

	// Result entry metrics
	draftsSaved       prometheus.Counter
	publishOutcomes   *prometheus.CounterVec
	publishLatency    prometheus.Histogram
	publishDuplicates prometheus.Counter

	// Publish pipeline metrics
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueRejected     *prometheus.CounterVec
	workerCount       prometheus.Gauge
	workerJobsHandled prometheus.Counter

	// Repository metrics
	repositoryLatency *prometheus.HistogramVec
	componentErrors   *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "oom",
		subsystem:        "standings",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		enabled:          true,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.standingsComputed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "computations_total",
		Help: "Season standings computations by reconcile mode",
	}, []string{"mode"})

	m.standingsLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "computation_duration_milliseconds",
		Help:    "Time to compute one season standings report",
		Buckets: m.histogramBuckets,
	})

	m.eventSources = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "event_sources_total",
		Help: "Qualifying events by the source their results were read from (log, inline, none)",
	}, []string{"source"})

	m.eventsExcluded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "events_excluded_total",
		Help: "Candidate events excluded from a season query, by reason",
	}, []string{"reason"})

	m.malformedRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "malformed_log_rows_total",
		Help: "Resolved result rows skipped because they could not be used",
	})

	m.draftsSaved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "results", ConstLabels: labels,
		Name: "drafts_saved_total",
		Help: "Draft score saves",
	})

	m.publishOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "results", ConstLabels: labels,
		Name: "publish_total",
		Help: "Publish attempts by outcome",
	}, []string{"outcome"})

	m.publishLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "results", ConstLabels: labels,
		Name:    "publish_duration_milliseconds",
		Help:    "Time from publish submission to commit",
		Buckets: m.histogramBuckets,
	})

	m.publishDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "results", ConstLabels: labels,
		Name: "publish_duplicates_total",
		Help: "Publish requests answered from the idempotency record",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "publish_queue", ConstLabels: labels,
		Name: "size",
		Help: "Publish jobs waiting across all shards",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "publish_queue", ConstLabels: labels,
		Name: "capacity",
		Help: "Configured capacity of one publish shard",
	})

	m.queueRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "publish_queue", ConstLabels: labels,
		Name: "rejected_total",
		Help: "Publish jobs rejected at enqueue, by reason",
	}, []string{"reason"})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "publish_queue", ConstLabels: labels,
		Name: "workers",
		Help: "Publish workers running",
	})

	m.workerJobsHandled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "publish_queue", ConstLabels: labels,
		Name: "jobs_handled_total",
		Help: "Publish jobs handled by workers",
	})

	m.repositoryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "repository", ConstLabels: labels,
		Name:    "operation_duration_milliseconds",
		Help:    "Store operation latency by backend and operation",
		Buckets: m.histogramBuckets,
	}, []string{"backend", "operation"})

	m.componentErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "errors_total",
		Help: "Errors by component and kind",
	}, []string{"component", "kind"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: labels,
		Name: "requests_total",
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: labels,
		Name:    "request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordStandingsComputed counts one standings computation in the given mode.
func (m *Manager) RecordStandingsComputed(mode string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.standingsComputed.WithLabelValues(mode).Inc()
	m.standingsLatency.Observe(latencyMs)
}

// RecordEventSource counts a qualifying event by where its results came from.
func (m *Manager) RecordEventSource(source string) {
	if !m.enabled {
		return
	}
	m.eventSources.WithLabelValues(source).Inc()
}

// RecordEventExcluded counts a candidate event dropped from a season query.
func (m *Manager) RecordEventExcluded(reason string) {
	if !m.enabled {
		return
	}
	m.eventsExcluded.WithLabelValues(reason).Inc()
}

// RecordMalformedRow counts a skipped log row.
func (m *Manager) RecordMalformedRow() {
	if !m.enabled {
		return
	}
	m.malformedRows.Inc()
}

// RecordDraftSaved counts a draft save.
func (m *Manager) RecordDraftSaved() {
	if !m.enabled {
		return
	}
	m.draftsSaved.Inc()
}

// RecordPublish counts a publish attempt and its latency.
func (m *Manager) RecordPublish(outcome string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.publishOutcomes.WithLabelValues(outcome).Inc()
	m.publishLatency.Observe(latencyMs)
}

// RecordPublishDuplicate counts a publish answered from the idempotency record.
func (m *Manager) RecordPublishDuplicate() {
	if !m.enabled {
		return
	}
	m.publishDuplicates.Inc()
}

// Global helpers delegate to the process-wide manager.

func RecordStandingsComputed(mode string, latencyMs float64) {
	globalManager.RecordStandingsComputed(mode, latencyMs)
}
func RecordEventSource(source string)   { globalManager.RecordEventSource(source) }
func RecordEventExcluded(reason string) { globalManager.RecordEventExcluded(reason) }
func RecordMalformedRow()               { globalManager.RecordMalformedRow() }
func RecordDraftSaved()                 { globalManager.RecordDraftSaved() }
func RecordPublish(outcome string, latencyMs float64) {
	globalManager.RecordPublish(outcome, latencyMs)
}
func RecordPublishDuplicate() { globalManager.RecordPublishDuplicate() }

// UpdateQueueSize sets the number of publish jobs waiting.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the per-shard capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a job refused at enqueue.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running publish workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerJob counts a job handled by a publish worker.
func RecordWorkerJob() {
	globalManager.workerJobsHandled.Inc()
}

// RecordRepositoryOperation observes one store operation.
func RecordRepositoryOperation(backend, operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordErrorByComponent counts an error in the named component.
func RecordErrorByComponent(component, kind string) {
	globalManager.componentErrors.WithLabelValues(component, kind).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package metrics provides Prometheus metrics for the coachmatch engagement engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Lifecycle
	transitionsApplied  *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	eventsDuplicate     *prometheus.CounterVec
	concurrencyRetries  prometheus.Counter
	concurrencyFailures prometheus.Counter
	capacityRejections  prometheus.Counter
	transitionLatency   prometheus.Histogram
	engagementsTotal    prometheus.Gauge

	// Journey projection
	projectorRuns    *prometheus.CounterVec
	projectorLatency prometheus.Histogram
	projectorRetries prometheus.Counter
	projectorDropped prometheus.Counter
	journeyDemotions prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositoryErrors        *prometheus.CounterVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "coachmatch",
		subsystem:        "engagement",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: buckets, ConstLabels: m.customLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.transitionsApplied = auto.NewCounterVec(m.counterOpts("transitions_applied_total",
		"Stage transitions written to the store"), []string{"event", "to"})
	m.transitionsRejected = auto.NewCounterVec(m.counterOpts("transitions_rejected_total",
		"Events that did not change a stage, by reason"), []string{"event", "reason"})
	m.eventsDuplicate = auto.NewCounterVec(m.counterOpts("events_duplicate_total",
		"Re-delivered events short-circuited by the idempotency ledger"), []string{"source"})
	m.concurrencyRetries = auto.NewCounter(m.counterOpts("concurrency_retries_total",
		"Compare-and-swap conflicts that were retried"))
	m.concurrencyFailures = auto.NewCounter(m.counterOpts("concurrency_failures_total",
		"Transitions that failed after the conflict retry"))
	m.capacityRejections = auto.NewCounter(m.counterOpts("shortlist_capacity_rejections_total",
		"Shortlist attempts rejected by the capacity guard"))
	m.transitionLatency = auto.NewHistogram(m.histogramOpts("transition_latency_milliseconds",
		"Read-decide-write latency of a transition", m.histogramBuckets))
	m.engagementsTotal = auto.NewGauge(m.gaugeOpts("engagements_total",
		"Number of engagement records in the store"))

	m.projectorRuns = auto.NewCounterVec(m.counterOpts("projector_runs_total",
		"Journey reprojections by outcome"), []string{"outcome"})
	m.projectorLatency = auto.NewHistogram(m.histogramOpts("projector_latency_milliseconds",
		"Journey reprojection latency", m.histogramBuckets))
	m.projectorRetries = auto.NewCounter(m.counterOpts("projector_retries_total",
		"Journey reprojection retry attempts"))
	m.projectorDropped = auto.NewCounter(m.counterOpts("projector_dropped_total",
		"Projection jobs dropped because the queue was full or closed"))
	m.journeyDemotions = auto.NewCounter(m.counterOpts("journey_demotions_total",
		"Clients demoted back to exploring_coaches"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.repositoryUpdateLatency = auto.NewHistogram(m.histogramOpts("repository_update_latency_milliseconds",
		"Repository write latency in milliseconds", m.histogramBuckets))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogramOpts("repository_query_latency_milliseconds",
		"Repository read latency in milliseconds", m.histogramBuckets))
	m.repositoryErrors = auto.NewCounterVec(m.counterOpts("repository_errors_total",
		"Repository errors by operation"), []string{"operation"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Pending projection jobs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Projection queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Projection queue size / capacity"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Projection jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Projection jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Projection enqueue failures"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds",
		"Enqueue latency in milliseconds", m.histogramBuckets))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured projection workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Projection workers currently running"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Projection job processing latency", m.histogramBuckets))
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Projection jobs that failed all retries"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Errors by type"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds",
		"Latency of operations that resulted in errors", m.histogramBuckets), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"Average GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordTransitionApplied counts a stage change written to the store.
func RecordTransitionApplied(event, to string) {
	globalManager.transitionsApplied.WithLabelValues(event, to).Inc()
}

// RecordTransitionRejected counts an event that left the stage unchanged.
func RecordTransitionRejected(event, reason string) {
	globalManager.transitionsRejected.WithLabelValues(event, reason).Inc()
}

// RecordEventDuplicate counts an event dropped by the idempotency ledger.
func RecordEventDuplicate(source string) {
	globalManager.eventsDuplicate.WithLabelValues(source).Inc()
}

// RecordConcurrencyRetry counts a retried compare-and-swap conflict.
func RecordConcurrencyRetry() {
	globalManager.concurrencyRetries.Inc()
}

// RecordConcurrencyFailure counts a transition that conflicted twice.
func RecordConcurrencyFailure() {
	globalManager.concurrencyFailures.Inc()
}

// RecordCapacityRejection counts a shortlist rejected by the cap.
func RecordCapacityRejection() {
	globalManager.capacityRejections.Inc()
}

// RecordTransitionLatency records transition latency in milliseconds.
func RecordTransitionLatency(latencyMs float64) {
	globalManager.transitionLatency.Observe(latencyMs)
}

// UpdateEngagementsTotal sets the number of stored engagement records.
func UpdateEngagementsTotal(count int) {
	globalManager.engagementsTotal.Set(float64(count))
}

// RecordProjectorRun counts a reprojection by outcome (demoted, unchanged, failed).
func RecordProjectorRun(outcome string) {
	globalManager.projectorRuns.WithLabelValues(outcome).Inc()
}

// RecordProjectorLatency records reprojection latency in milliseconds.
func RecordProjectorLatency(latencyMs float64) {
	globalManager.projectorLatency.Observe(latencyMs)
}

// RecordProjectorRetry counts one reprojection retry.
func RecordProjectorRetry() {
	globalManager.projectorRetries.Inc()
}

// RecordProjectorDropped counts a projection job that could not be queued.
func RecordProjectorDropped() {
	globalManager.projectorDropped.Inc()
}

// RecordJourneyDemotion counts a client demoted to exploring_coaches.
func RecordJourneyDemotion() {
	globalManager.journeyDemotions.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositoryError counts a repository failure for an operation.
func RecordRepositoryError(operation string) {
	globalManager.repositoryErrors.WithLabelValues(operation).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records projection job latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

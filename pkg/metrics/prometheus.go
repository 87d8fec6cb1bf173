// Package metrics provides Prometheus metrics for the fightrank pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the fightrank service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Rating estimator
	fitsStarted       *prometheus.CounterVec
	fitsCompleted     *prometheus.CounterVec
	fitsFailed        *prometheus.CounterVec
	fitDuration       *prometheus.HistogramVec
	rowsProcessed     prometheus.Counter
	nullOutcomeRows   prometheus.Counter
	dateBatches       prometheus.Counter
	pinnedCells       prometheus.Counter
	unknownEntities   prometheus.Counter
	doublingViolation prometheus.Counter

	// Identity resolution
	isoMappings  *prometheus.CounterVec
	isoConflicts prometheus.Counter
	isoStrays    prometheus.Gauge

	// Backtest
	backtestRuns prometheus.Counter
	foldLogLoss  *prometheus.GaugeVec

	// Portfolio
	betsPlaced   prometheus.Counter
	betsSettled  *prometheus.CounterVec
	bankroll     prometheus.Gauge
	maxDrawdown  prometheus.Gauge
	kellyRejects prometheus.Counter

	// Rankings store
	rankedEntities          prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Job queue and workers
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	workerCount            prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors           prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fightrank",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.fitsStarted = m.counterVec("fits_started_total", "Rating fits started by target kind", "kind")
	m.fitsCompleted = m.counterVec("fits_completed_total", "Rating fits completed by target kind", "kind")
	m.fitsFailed = m.counterVec("fits_failed_total", "Rating fits aborted by target kind and reason", "kind", "reason")
	m.fitDuration = m.histogramVec("fit_duration_milliseconds", "Rating fit wall time in milliseconds", "kind")
	m.rowsProcessed = m.counter("rows_processed_total", "Doubled contest rows consumed by fits")
	m.nullOutcomeRows = m.counter("null_outcome_rows_total", "Rows whose outcome was missing and contributed no update")
	m.dateBatches = m.counter("date_batches_total", "Date batches applied by fits")
	m.pinnedCells = m.counter("pinned_cells_total", "Offense/defense cells pinned at zero as uninformative")
	m.unknownEntities = m.counter("unknown_entity_lookups_total", "Predictions that hit the reserved unknown-entity slot")
	m.doublingViolation = m.counter("doubling_violations_total", "Contest ids that did not appear exactly twice")

	m.isoMappings = m.counterVec("isomorphism_mappings_total", "Crosswalk entries discovered by phase", "phase")
	m.isoConflicts = m.counter("isomorphism_conflicts_total", "Crosswalk conflicts detected")
	m.isoStrays = m.gauge("isomorphism_strays", "Aux identifiers left unresolved by the last run")

	m.backtestRuns = m.counter("backtest_runs_total", "Backtests executed")
	m.foldLogLoss = m.gaugeVec("backtest_fold_log_loss", "Log-loss of the last backtest per fold", "fold")

	m.betsPlaced = m.counter("bets_placed_total", "Bets placed by the portfolio simulator")
	m.betsSettled = m.counterVec("bets_settled_total", "Bets settled by result", "result")
	m.bankroll = m.gauge("bankroll", "Current simulated bankroll")
	m.maxDrawdown = m.gauge("max_drawdown_ratio", "Maximum drawdown of the last simulation")
	m.kellyRejects = m.counter("kelly_double_sided_total", "Contests rejected because both sides had positive Kelly fractions")

	m.rankedEntities = m.gauge("ranked_entities", "Entities held by the rankings store")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Rankings store update latency in milliseconds")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Rankings store query latency in milliseconds")

	m.queueSize = m.gauge("queue_size", "Current size of the fit job queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum fit job queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")
	m.workerCount = m.gauge("worker_count", "Number of fit workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Job processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed jobs")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint",
		"endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Rating estimator.

// RecordFitStarted counts a fit entering the FITTING state.
func RecordFitStarted(kind string) { globalManager.fitsStarted.WithLabelValues(kind).Inc() }

// RecordFitCompleted counts a successful fit and its duration.
func RecordFitCompleted(kind string, durationMs float64) {
	globalManager.fitsCompleted.WithLabelValues(kind).Inc()
	globalManager.fitDuration.WithLabelValues(kind).Observe(durationMs)
}

// RecordFitFailed counts an aborted fit.
func RecordFitFailed(kind, reason string) { globalManager.fitsFailed.WithLabelValues(kind, reason).Inc() }

// RecordRowsProcessed adds to the processed row counter.
func RecordRowsProcessed(n int) { globalManager.rowsProcessed.Add(float64(n)) }

// RecordNullOutcomes adds rows skipped for a missing outcome.
func RecordNullOutcomes(n int) { globalManager.nullOutcomeRows.Add(float64(n)) }

// RecordDateBatches adds applied date batches.
func RecordDateBatches(n int) { globalManager.dateBatches.Add(float64(n)) }

// RecordPinnedCells adds uninformative offense/defense cells.
func RecordPinnedCells(n int) { globalManager.pinnedCells.Add(float64(n)) }

// RecordUnknownEntity counts a lenient lookup of an unregistered id.
func RecordUnknownEntity() { globalManager.unknownEntities.Inc() }

// RecordDoublingViolations adds contest ids that broke the doubling invariant.
func RecordDoublingViolations(n int) { globalManager.doublingViolation.Add(float64(n)) }

// Identity resolution.

// RecordIsomorphismMappings adds crosswalk entries found in a phase.
func RecordIsomorphismMappings(phase string, n int) {
	globalManager.isoMappings.WithLabelValues(phase).Add(float64(n))
}

// RecordIsomorphismConflicts adds detected conflicts.
func RecordIsomorphismConflicts(n int) { globalManager.isoConflicts.Add(float64(n)) }

// UpdateIsomorphismStrays sets the stray count of the last run.
func UpdateIsomorphismStrays(n int) { globalManager.isoStrays.Set(float64(n)) }

// Backtest.

// RecordBacktestRun counts a backtest.
func RecordBacktestRun() { globalManager.backtestRuns.Inc() }

// UpdateFoldLogLoss sets the log-loss of a fold.
func UpdateFoldLogLoss(fold string, v float64) { globalManager.foldLogLoss.WithLabelValues(fold).Set(v) }

// Portfolio.

// RecordBetPlaced counts a placed bet.
func RecordBetPlaced() { globalManager.betsPlaced.Inc() }

// RecordBetSettled counts a settled bet by result (win, loss, draw).
func RecordBetSettled(result string) { globalManager.betsSettled.WithLabelValues(result).Inc() }

// UpdateBankroll sets the current bankroll.
func UpdateBankroll(v float64) { globalManager.bankroll.Set(v) }

// UpdateMaxDrawdown sets the maximum drawdown ratio.
func UpdateMaxDrawdown(v float64) { globalManager.maxDrawdown.Set(v) }

// RecordKellyDoubleSided counts a contest with two positive Kelly fractions.
func RecordKellyDoubleSided() { globalManager.kellyRejects.Inc() }

// Rankings store.

// UpdateRankedEntities sets the number of ranked entities.
func UpdateRankedEntities(n int) { globalManager.rankedEntities.Set(float64(n)) }

// RecordRepositoryUpdateLatency records rankings store update latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records rankings store query latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue and workers.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records job processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

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

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

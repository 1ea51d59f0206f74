package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the pricing admin backend
type PrometheusMetrics struct {
	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec

	// KV metrics
	KVLookupsTotal *prometheus.CounterVec

	// Audit metrics
	AuditEntriesWrittenTotal *prometheus.CounterVec
	AuditEntriesCleanedTotal prometheus.Counter

	// Notification metrics
	NotificationsSentTotal *prometheus.CounterVec

	// Git provider metrics
	GitProviderChecksTotal   *prometheus.CounterVec
	GitProviderCheckDuration *prometheus.HistogramVec
	GitProviderConnected     *prometheus.GaugeVec

	// Performance collector metrics
	PerformanceSamplesStored prometheus.Gauge

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates all metrics and registers them with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		// API metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_admin_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricing_admin_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Storage metrics
		DatabaseOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_admin_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricing_admin_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),

		// KV metrics
		KVLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_admin_kv_lookups_total",
				Help: "Total number of key-value lookups by result",
			},
			[]string{"result"},
		),

		// Audit metrics
		AuditEntriesWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_admin_audit_entries_written_total",
				Help: "Total number of audit log entries written",
			},
			[]string{"action"},
		),

		AuditEntriesCleanedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pricing_admin_audit_entries_cleaned_total",
				Help: "Total number of expired audit log entries removed",
			},
		),

		// Notification metrics
		NotificationsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_admin_notifications_sent_total",
				Help: "Total number of audit alert webhooks by outcome (sent, failed, dropped)",
			},
			[]string{"status"},
		),

		// Git provider metrics
		GitProviderChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricing_admin_git_provider_checks_total",
				Help: "Total number of git provider connectivity checks",
			},
			[]string{"provider", "status"},
		),

		GitProviderCheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricing_admin_git_provider_check_duration_seconds",
				Help:    "Duration of git provider connectivity checks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		GitProviderConnected: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricing_admin_git_provider_connected",
				Help: "Connectivity of git providers at the last check (1=connected, 0=disconnected)",
			},
			[]string{"provider"},
		),

		// Performance collector metrics
		PerformanceSamplesStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricing_admin_performance_samples_stored",
				Help: "Number of request samples held by the performance collector",
			},
		),

		// Application health metrics
		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricing_admin_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricing_admin_component_health",
				Help: "Health status of application components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricing_admin_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricing_admin_goroutines",
				Help: "Number of running goroutines",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordKVLookup records a key-value lookup outcome (hit, miss, error)
func (m *PrometheusMetrics) RecordKVLookup(result string) {
	m.KVLookupsTotal.WithLabelValues(result).Inc()
}

// RecordAuditEntry records a written audit entry
func (m *PrometheusMetrics) RecordAuditEntry(action string) {
	m.AuditEntriesWrittenTotal.WithLabelValues(action).Inc()
}

// RecordAuditCleanup records removed expired audit entries
func (m *PrometheusMetrics) RecordAuditCleanup(removed int64) {
	m.AuditEntriesCleanedTotal.Add(float64(removed))
}

// RecordNotification records an audit alert outcome: sent, failed or dropped
func (m *PrometheusMetrics) RecordNotification(status string) {
	m.NotificationsSentTotal.WithLabelValues(status).Inc()
}

// RecordGitProviderCheck records the outcome of a provider connectivity check
func (m *PrometheusMetrics) RecordGitProviderCheck(provider string, connected bool, duration time.Duration) {
	status := "disconnected"
	value := 0.0
	if connected {
		status = "connected"
		value = 1.0
	}
	m.GitProviderChecksTotal.WithLabelValues(provider, status).Inc()
	m.GitProviderCheckDuration.WithLabelValues(provider).Observe(duration.Seconds())
	m.GitProviderConnected.WithLabelValues(provider).Set(value)
}

// UpdatePerformanceSamples updates the number of samples held by the collector
func (m *PrometheusMetrics) UpdatePerformanceSamples(count int) {
	m.PerformanceSamplesStored.Set(float64(count))
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}

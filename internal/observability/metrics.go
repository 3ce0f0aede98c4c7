// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsFetched         *prometheus.CounterVec
	EventsApplied         *prometheus.CounterVec
	EventsSkipped         *prometheus.CounterVec
	EventProcessingErrors *prometheus.CounterVec
	DeadLettersWritten    *prometheus.CounterVec
	DeadLettersResolved   *prometheus.CounterVec
	CursorAdvances        *prometheus.CounterVec
	CyclesTotal           *prometheus.CounterVec
	CycleDuration         prometheus.Histogram

	// Latency metrics
	EventProcessingLatency *prometheus.HistogramVec
	RPCCallLatency         *prometheus.HistogramVec
	RPCCallErrors          *prometheus.CounterVec
	WSNotifications        prometheus.Counter
	WSReconnects           prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	APIRequests        *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vault_indexer"
	}

	return &Metrics{
		// Ingestion metrics
		EventsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_fetched_total",
			Help:      "Total number of events fetched from the ledger by event type",
		}, []string{"event_type"}),
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_applied_total",
			Help:      "Total number of events applied by event type and outcome",
		}, []string{"event_type", "outcome"}),
		EventsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_skipped_total",
			Help:      "Total number of fetched events with a foreign type tag",
		}, []string{"event_type"}),
		EventProcessingErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_processing_errors_total",
			Help:      "Total number of event processing errors by type",
		}, []string{"event_type", "error_class"}),
		DeadLettersWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "dead_letters_written_total",
			Help:      "Total number of events parked as dead letters",
		}, []string{"event_type"}),
		DeadLettersResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "dead_letters_resolved_total",
			Help:      "Total number of dead letters re-applied successfully",
		}, []string{"event_type"}),
		CursorAdvances: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "cursor_advances_total",
			Help:      "Total number of cursor upserts by event type",
		}, []string{"event_type"}),
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by status",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "cycle_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Latency metrics
		EventProcessingLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_processing_latency_seconds",
			Help:      "Event decode and apply latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sui",
			Name:      "rpc_call_latency_seconds",
			Help:      "Sui RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sui",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Sui RPC calls",
		}, []string{"method"}),
		WSNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sui",
			Name:      "ws_notifications_total",
			Help:      "Total number of event notifications received over WebSocket",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sui",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnect attempts",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// API metrics
		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
		APIRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last poll cycle without a cycle-level error",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventsFetched adds n fetched events for an event type.
func RecordEventsFetched(eventType string, n int) {
	DefaultMetrics.EventsFetched.WithLabelValues(eventType).Add(float64(n))
}

// RecordEventApplied records the outcome of applying one event.
func RecordEventApplied(eventType, outcome string, d time.Duration) {
	DefaultMetrics.EventsApplied.WithLabelValues(eventType, outcome).Inc()
	DefaultMetrics.EventProcessingLatency.WithLabelValues(eventType).Observe(d.Seconds())
}

// RecordEventsSkipped adds n foreign-type events for an event type.
func RecordEventsSkipped(eventType string, n int) {
	if n > 0 {
		DefaultMetrics.EventsSkipped.WithLabelValues(eventType).Add(float64(n))
	}
}

// RecordEventError records an event processing error.
func RecordEventError(eventType, errorClass string) {
	DefaultMetrics.EventProcessingErrors.WithLabelValues(eventType, errorClass).Inc()
}

// RecordDeadLetter records an event parked as a dead letter.
func RecordDeadLetter(eventType string) {
	DefaultMetrics.DeadLettersWritten.WithLabelValues(eventType).Inc()
}

// RecordDeadLetterResolved records a dead letter re-applied successfully.
func RecordDeadLetterResolved(eventType string) {
	DefaultMetrics.DeadLettersResolved.WithLabelValues(eventType).Inc()
}

// RecordCursorAdvance records a cursor upsert.
func RecordCursorAdvance(eventType string) {
	DefaultMetrics.CursorAdvances.WithLabelValues(eventType).Inc()
}

// RecordCycle records a completed poll cycle.
func RecordCycle(err error, d time.Duration) {
	DefaultMetrics.CycleDuration.Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.CyclesTotal.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.CyclesTotal.WithLabelValues("ok").Inc()
	DefaultMetrics.LastSuccessfulCycle.SetToCurrentTime()
}

// RecordRPCCall records RPC call latency and failures.
func RecordRPCCall(method string, d time.Duration, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordWSNotification counts one subscription notification.
func RecordWSNotification() {
	DefaultMetrics.WSNotifications.Inc()
}

// RecordWSReconnect counts one reconnect attempt.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordAPIRequest records one served API request.
func RecordAPIRequest(route string, code int, d time.Duration) {
	DefaultMetrics.APIRequests.WithLabelValues(route, statusLabel(code)).Inc()
	DefaultMetrics.APIRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}

// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LiveSessionsActive tracks open live channel sessions.
	LiveSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_sessions_active",
			Help: "Number of open live channel sessions",
		},
	)

	// LiveEventsTotal tracks inbound live channel events.
	LiveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_events_total",
			Help: "Inbound live channel events",
		},
		[]string{"event", "outcome"},
	)

	// MessagesTotal tracks messages sent, by ingress path.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages sent",
		},
		[]string{"ingress"},
	)

	// ReadsTotal tracks mark-read operations and receipts written.
	ReadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_reads_total",
			Help: "Total mark-read operations",
		},
	)

	// ReceiptsTotal tracks read receipts written.
	ReceiptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_receipts_total",
			Help: "Total read receipts written",
		},
	)

	// LockTimeoutsTotal tracks sends and reads that gave up waiting for
	// their thread.
	LockTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_lock_timeouts_total",
			Help: "Thread lock waits that timed out",
		},
	)

	// FanoutDeliveries tracks events queued to sessions.
	FanoutDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_deliveries_total",
			Help: "Events delivered to live sessions",
		},
		[]string{"event", "result"},
	)

	// StoreOperationDuration tracks storage latency.
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"op", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveStoreOperation records the latency of a storage call.
func ObserveStoreOperation(op, status string, duration float64) {
	StoreOperationDuration.WithLabelValues(op, status).Observe(duration)
}

// RecordDelivery records a fan-out delivery attempt.
func RecordDelivery(event string, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "dropped"
	}
	FanoutDeliveries.WithLabelValues(event, result).Inc()
}

// RecordRead records a mark-read operation.
func RecordRead(receipts int64) {
	ReadsTotal.Inc()
	ReceiptsTotal.Add(float64(receipts))
}

// IncrementLiveSessions increments the open session count.
func IncrementLiveSessions() {
	LiveSessionsActive.Inc()
}

// DecrementLiveSessions decrements the open session count.
func DecrementLiveSessions() {
	LiveSessionsActive.Dec()
}

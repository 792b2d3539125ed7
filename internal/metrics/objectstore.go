package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StoreMetrics holds metrics for object store write sessions and lookups.
// It implements objectstore.MetricsRecorder.
type StoreMetrics struct {
	// LatencyHistogram tracks backend call latencies.
	// Labels: operation (append, close, head, delete), status (success, failure)
	LatencyHistogram *prometheus.HistogramVec

	// RequestsTotal tracks backend calls by operation and status.
	RequestsTotal *prometheus.CounterVec

	// BytesWritten counts bytes acknowledged by successful appends.
	BytesWritten prometheus.Counter

	// ErrorsTotal counts normalized errors.
	// Labels: operation, kind (Unexpected, ObjectNotFound, ObjectPermissionDenied), retryable (true, false)
	ErrorsTotal *prometheus.CounterVec
}

// Operation label values.
const (
	OpAppend = "append"
	OpClose  = "close"
	OpHead   = "head"
	OpDelete = "delete"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// DefaultObjectStoreLatencyBuckets are latency buckets for object store calls.
// Appends of multi-megabyte blocks range from tens of ms to several seconds.
var DefaultObjectStoreLatencyBuckets = []float64{
	0.005, // 5ms
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
	5.0,   // 5s
	10.0,  // 10s
	30.0,  // 30s
}

// NewStoreMetrics creates store metrics registered with the default registry.
func NewStoreMetrics() *StoreMetrics {
	return newStoreMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewStoreMetricsWithRegistry creates store metrics registered with reg.
// Useful for testing to avoid conflicts with the default registry.
func NewStoreMetricsWithRegistry(reg prometheus.Registerer) *StoreMetrics {
	return newStoreMetrics(promauto.With(reg))
}

func newStoreMetrics(factory promauto.Factory) *StoreMetrics {
	return &StoreMetrics{
		LatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "objaccess",
				Subsystem: "objectstore",
				Name:      "operation_latency_seconds",
				Help:      "Object store call latency in seconds, broken down by operation and status.",
				Buckets:   DefaultObjectStoreLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objaccess",
				Subsystem: "objectstore",
				Name:      "operations_total",
				Help:      "Total number of object store calls, broken down by operation and status.",
			},
			[]string{"operation", "status"},
		),
		BytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "objaccess",
				Subsystem: "objectstore",
				Name:      "bytes_written_total",
				Help:      "Total bytes acknowledged by successful appends.",
			},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "objaccess",
				Subsystem: "objectstore",
				Name:      "errors_total",
				Help:      "Total number of normalized object store errors by operation, kind and retryability.",
			},
			[]string{"operation", "kind", "retryable"},
		),
	}
}

// RecordOperation records a call latency and increments the request counter.
func (m *StoreMetrics) RecordOperation(operation string, durationSeconds float64, success bool) {
	status := StatusFailure
	if success {
		status = StatusSuccess
	}
	m.LatencyHistogram.WithLabelValues(operation, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordAppend records one append. Bytes count only when the append succeeded.
func (m *StoreMetrics) RecordAppend(durationSeconds float64, success bool, bytes int64) {
	m.RecordOperation(OpAppend, durationSeconds, success)
	if success && bytes > 0 {
		m.BytesWritten.Add(float64(bytes))
	}
}

// RecordClose records the close of a write session.
func (m *StoreMetrics) RecordClose(durationSeconds float64, success bool) {
	m.RecordOperation(OpClose, durationSeconds, success)
}

// RecordHead records a Head call.
func (m *StoreMetrics) RecordHead(durationSeconds float64, success bool) {
	m.RecordOperation(OpHead, durationSeconds, success)
}

// RecordDelete records a Delete call.
func (m *StoreMetrics) RecordDelete(durationSeconds float64, success bool) {
	m.RecordOperation(OpDelete, durationSeconds, success)
}

// RecordError counts a normalized error.
func (m *StoreMetrics) RecordError(operation, kind string, retryable bool) {
	m.ErrorsTotal.WithLabelValues(operation, kind, strconv.FormatBool(retryable)).Inc()
}

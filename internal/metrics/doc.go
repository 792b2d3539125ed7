// Package metrics provides Prometheus metrics for the object write path.
//
// StoreMetrics implements objectstore.MetricsRecorder and exposes:
//   - backend call latency by operation (append, close, head, delete) and status
//   - backend call counters by operation and status
//   - bytes acknowledged by successful appends
//   - normalized errors by operation, kind and retryability
//
// Metrics are exposed via a dedicated HTTP server on /metrics in Prometheus format.
//
// Usage:
//
//	m := metrics.NewStoreMetrics()
//	store := objectstore.NewInstrumentedStore(backend, m)
//
//	srv := metrics.NewServer(":9090")
//	srv.Start()
//	defer srv.Close()
package metrics

package objectstore

import (
	"context"
	"errors"
	"time"
)

// MetricsRecorder is the interface for recording write path metrics.
// This allows the objectstore package to be decoupled from the metrics package.
type MetricsRecorder interface {
	RecordAppend(durationSeconds float64, success bool, bytes int64)
	RecordClose(durationSeconds float64, success bool)
	RecordHead(durationSeconds float64, success bool)
	RecordDelete(durationSeconds float64, success bool)
	RecordError(operation string, kind string, retryable bool)
}

// InstrumentedStore wraps a Store and records metrics for each operation,
// including the appends and closes of the block writers it hands out.
type InstrumentedStore struct {
	store   Store
	metrics MetricsRecorder
}

// NewInstrumentedStore creates an instrumented wrapper around a Store.
// If metrics is nil, no metrics are recorded and operations pass through directly.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		metrics: metrics,
	}
}

// Write opens a write session whose appends and close are recorded.
func (s *InstrumentedStore) Write(ctx context.Context, key string, opts WriteOptions) (BlockWriter, error) {
	w, err := s.store.Write(ctx, key, opts)
	if err != nil {
		s.recordError("write", err)
		return nil, err
	}
	if s.metrics == nil {
		return w, nil
	}
	return &instrumentedWriter{BlockWriter: w, store: s}, nil
}

// Head retrieves object metadata without the body.
func (s *InstrumentedStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	start := time.Now()
	meta, err := s.store.Head(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordHead(time.Since(start).Seconds(), err == nil)
		s.recordError("head", err)
	}
	return meta, err
}

// Delete removes an object.
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordDelete(time.Since(start).Seconds(), err == nil)
		s.recordError("delete", err)
	}
	return err
}

// Close releases resources associated with the store.
func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}

func (s *InstrumentedStore) recordError(operation string, err error) {
	if s.metrics == nil || err == nil {
		return
	}
	var oerr *Error
	if errors.As(err, &oerr) {
		s.metrics.RecordError(operation, oerr.Kind.String(), oerr.Retryable)
		return
	}
	s.metrics.RecordError(operation, KindUnexpected.String(), false)
}

// instrumentedWriter records every append and close of the wrapped writer.
type instrumentedWriter struct {
	BlockWriter
	store *InstrumentedStore
}

func (w *instrumentedWriter) Append(ctx context.Context, block []byte) error {
	start := time.Now()
	err := w.BlockWriter.Append(ctx, block)
	w.store.metrics.RecordAppend(time.Since(start).Seconds(), err == nil, int64(len(block)))
	w.store.recordError("append", err)
	return err
}

func (w *instrumentedWriter) Close(ctx context.Context) error {
	start := time.Now()
	err := w.BlockWriter.Close(ctx)
	w.store.metrics.RecordClose(time.Since(start).Seconds(), err == nil)
	w.store.recordError("close", err)
	return err
}

// Ensure InstrumentedStore implements Store.
var _ Store = (*InstrumentedStore)(nil)

package writer

import (
	"context"

	"github.com/dray-io/objaccess/internal/objectstore"
)

// BlockingObjectWriter is the synchronous counterpart of ObjectWriter: every
// call forwards to the block writer and returns when the backend does.
type BlockingObjectWriter struct {
	inner objectstore.BlockingBlockWriter
}

// NewBlocking wraps w, which must be exclusively owned by the returned writer.
func NewBlocking(w objectstore.BlockingBlockWriter) *BlockingObjectWriter {
	return &BlockingObjectWriter{inner: w}
}

// CreateBlocking opens a synchronous write session for key on store. Every
// backend call runs under ctx.
func CreateBlocking(ctx context.Context, store objectstore.Store, key string, opts objectstore.WriteOptions) (*BlockingObjectWriter, error) {
	bw, err := store.Write(ctx, key, opts)
	if err != nil {
		return nil, err
	}
	return NewBlocking(objectstore.Blocking(ctx, bw)), nil
}

// Append sends one block to the backend.
func (w *BlockingObjectWriter) Append(block []byte) error {
	return w.inner.Append(block)
}

// Close finishes the object and makes sure all data has been stored.
func (w *BlockingObjectWriter) Close() error {
	return w.inner.Close()
}

// Write implements io.Writer; p is appended as one block.
func (w *BlockingObjectWriter) Write(p []byte) (int, error) {
	if err := w.inner.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush does nothing: every write is appended before Write returns.
func (w *BlockingObjectWriter) Flush() error {
	return nil
}

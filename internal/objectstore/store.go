// Package objectstore defines the backend contracts of the object write path.
//
// A backend is opened as a [Store]. Writing an object is a session: the store
// hands out a [BlockWriter] for one key, the caller appends blocks to it and
// finally closes it:
//
//	bw, err := store.Write(ctx, "logs/2025/01/02/app.log", objectstore.WriteOptions{})
//	if err != nil {
//	    return err
//	}
//	for _, block := range blocks {
//	    if err := bw.Append(ctx, block); err != nil {
//	        return err
//	    }
//	}
//	return bw.Close(ctx)
//
// Failed backend calls are reported as [*Error] values. The error carries a
// [Kind] and a retryable verdict derived from the HTTP status of the failed
// response; retry policies should consult [IsRetryable] rather than parse
// messages:
//
//	if err := bw.Append(ctx, block); err != nil {
//	    if objectstore.IsRetryable(err) {
//	        // re-issue
//	    }
//	    if errors.Is(err, objectstore.ErrNotFound) {
//	        // handle missing object
//	    }
//	}
//
// Most callers do not use BlockWriter directly but wrap it in the adapters
// from the writer package.
package objectstore

import (
	"context"
	"errors"
)

// Common errors. Kind-carrying [*Error] values match ErrNotFound and
// ErrAccessDenied through errors.Is.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrClosed is returned by stores and block writers used after Close.
	ErrClosed = errors.New("objectstore: closed")
)

// DefaultChunkSize is the advised size of every appended block except the
// last one. Backends accept other sizes; this one is a good fit for both
// throughput and the part-size rules of multipart uploads.
const DefaultChunkSize = 4 << 20

// DefaultContentType is recorded for objects written without a content type.
const DefaultContentType = "application/octet-stream"

// ObjectMeta contains metadata about an object.
type ObjectMeta struct {
	// Key is the object's key (path) in the bucket.
	Key string

	// Size is the object's size in bytes.
	Size int64

	// ContentType is the MIME type of the object.
	ContentType string

	// ETag is the entity tag reported by the backend.
	ETag string

	// LastModified is the Unix timestamp (milliseconds) when the object was last modified.
	LastModified int64

	// Metadata contains user-defined key-value metadata.
	Metadata map[string]string
}

// WriteOptions configures a write session.
type WriteOptions struct {
	// ContentType is the MIME type recorded for the object.
	// Defaults to "application/octet-stream".
	ContentType string

	// Metadata is optional user-defined key-value pairs stored with the object.
	Metadata map[string]string
}

// ContentTypeOrDefault returns the configured content type or the default one.
func (o WriteOptions) ContentTypeOrDefault() string {
	if o.ContentType == "" {
		return DefaultContentType
	}
	return o.ContentType
}

// BlockWriter appends blocks to a single object.
//
// A BlockWriter has exactly one owner and is not safe for concurrent use.
// Implementations must not retain block after Append returns.
type BlockWriter interface {
	// Append sends one block to the backend. It returns once the backend
	// acknowledged the block or the call failed.
	Append(ctx context.Context, block []byte) error

	// Close finishes the object and makes sure every appended block is stored.
	Close(ctx context.Context) error
}

// BlockingBlockWriter is the context-free variant of BlockWriter used by
// synchronous sessions.
type BlockingBlockWriter interface {
	Append(block []byte) error
	Close() error
}

// Store is the accessor contract implemented by every backend.
//
// Thread Safety: Implementations must be safe for concurrent use. The
// BlockWriters they return are not.
type Store interface {
	// Write opens a write session for key.
	Write(ctx context.Context, key string, opts WriteOptions) (BlockWriter, error)

	// Head retrieves object metadata without the body.
	//
	// Returns an error matching ErrNotFound when the object doesn't exist.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// Delete removes an object. Deleting a non-existent object succeeds.
	Delete(ctx context.Context, key string) error

	// Close releases resources associated with the store.
	Close() error
}

// Blocking binds ctx to a BlockWriter so it can serve a synchronous session.
func Blocking(ctx context.Context, w BlockWriter) BlockingBlockWriter {
	return &boundWriter{ctx: ctx, w: w}
}

type boundWriter struct {
	ctx context.Context
	w   BlockWriter
}

func (b *boundWriter) Append(block []byte) error {
	return b.w.Append(b.ctx, block)
}

func (b *boundWriter) Close() error {
	return b.w.Close(b.ctx)
}

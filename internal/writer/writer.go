// Package writer adapts backend block writers to conventional byte-stream
// writers.
//
// [ObjectWriter] exposes a poll-driven surface (PollWrite, PollClose, Ready)
// for cooperative schedulers and an io.WriteCloser surface built on top of
// it. [BlockingObjectWriter] forwards synchronously.
//
// Every accepted write is one backend append: writers do not buffer, so
// callers that care about request counts should chunk their data, ideally in
// blocks of objectstore.DefaultChunkSize:
//
//	w, err := writer.Create(ctx, store, key, objectstore.WriteOptions{})
//	if err != nil {
//	    return err
//	}
//	bw := bufio.NewWriterSize(w, objectstore.DefaultChunkSize)
//	if _, err := io.Copy(bw, src); err != nil {
//	    return err
//	}
//	if err := bw.Flush(); err != nil {
//	    return err
//	}
//	return w.Close()
package writer

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/dray-io/objaccess/internal/logging"
	"github.com/dray-io/objaccess/internal/objectstore"
)

// ErrPending is returned by PollWrite and PollClose while the backend
// operation they started has not finished. Wait on Ready and poll again.
var ErrPending = errors.New("writer: operation pending")

type state int

const (
	stateIdle state = iota
	stateWriting
	stateClosing
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateWriting:
		return "Writing"
	case stateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// op is an in-flight backend call. It owns the block writer until done is
// closed; size and err are only read after that.
type op struct {
	done chan struct{}
	w    objectstore.BlockWriter
	size int
	err  error
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// ObjectWriter appends to a remote object across many calls.
//
// The writer is always in one of three states: Idle (it holds the block
// writer), Writing (an append owns it) or Closing (a close owns it). Starting
// a close while Writing, or a write while Closing or after a successful
// close, is a caller bug and panics with an assertion failure.
//
// An ObjectWriter is not safe for concurrent use.
type ObjectWriter struct {
	ctx   context.Context
	id    string
	key   string
	log   *logging.Logger
	state state
	w     objectstore.BlockWriter
	op    *op

	// closed is set once the backend close succeeded.
	closed bool
}

// New wraps bw, which must be exclusively owned by the returned writer.
// Backend calls started by the writer run under ctx.
func New(ctx context.Context, key string, bw objectstore.BlockWriter) *ObjectWriter {
	id := uuid.NewString()
	ctx = logging.WithSessionIDCtx(ctx, id)
	return &ObjectWriter{
		ctx: ctx,
		id:  id,
		key: key,
		log: logging.FromCtx(ctx).With(map[string]any{"key": key}),
		w:   bw,
	}
}

// Create opens a write session for key on store.
func Create(ctx context.Context, store objectstore.Store, key string, opts objectstore.WriteOptions) (*ObjectWriter, error) {
	bw, err := store.Write(ctx, key, opts)
	if err != nil {
		return nil, err
	}
	w := New(ctx, key, bw)
	w.log.Debug("write session opened")
	return w, nil
}

// ID returns the session ID used in log entries.
func (w *ObjectWriter) ID() string {
	return w.id
}

// Append sends one block and waits for it. The writer must be Idle.
func (w *ObjectWriter) Append(ctx context.Context, block []byte) error {
	if w.state != stateIdle || w.closed {
		panic(errors.AssertionFailedf("writer state invalid while append, expect Idle, actual %s (closed=%t)", w.state, w.closed))
	}
	return w.w.Append(ctx, block)
}

// PollWrite writes p without blocking.
//
// From Idle it copies p, starts the append and returns ErrPending unless the
// append already finished. While Writing it reports ErrPending until the
// append finishes, then returns the byte count captured when it started; p
// is ignored on these calls, so callers must poll again with the same data.
// A failed append returns the writer to Idle with the backend error; the
// bytes of that append are not retried.
func (w *ObjectWriter) PollWrite(p []byte) (int, error) {
	for {
		switch w.state {
		case stateIdle:
			if w.closed {
				panic(errors.AssertionFailedf("invalid state of writer: PollWrite after close"))
			}
			bw := w.take()
			block := bytes.Clone(p)
			w.op = w.start(bw, len(block), func(ctx context.Context) error {
				return bw.Append(ctx, block)
			})
			w.state = stateWriting
		case stateWriting:
			o, ok := w.finish()
			if !ok {
				return 0, ErrPending
			}
			if o.err != nil {
				w.logFailure("append", o.err)
				return 0, o.err
			}
			w.log.Debugf("append completed", map[string]any{"bytes": o.size})
			return o.size, nil
		case stateClosing:
			panic(errors.AssertionFailedf("invalid state of writer: PollWrite while %s", w.state))
		}
	}
}

// PollClose closes the object without blocking, with the same discipline as
// PollWrite. A failed close also returns the writer to Idle, so the close can
// be polled again. Once a close has succeeded further calls return nil.
func (w *ObjectWriter) PollClose() error {
	for {
		switch w.state {
		case stateIdle:
			if w.closed {
				return nil
			}
			bw := w.take()
			w.op = w.start(bw, 0, bw.Close)
			w.state = stateClosing
		case stateWriting:
			panic(errors.AssertionFailedf("invalid state of writer: PollClose while %s", w.state))
		case stateClosing:
			o, ok := w.finish()
			if !ok {
				return ErrPending
			}
			if o.err != nil {
				w.logFailure("close", o.err)
				return o.err
			}
			w.closed = true
			w.log.Debug("write session closed")
			return nil
		}
	}
}

// Ready returns a channel that is closed once no backend call is pending.
func (w *ObjectWriter) Ready() <-chan struct{} {
	if w.op == nil {
		return closedCh
	}
	return w.op.done
}

// Write implements io.Writer by polling until the append of p completes.
//
// Write always returns with the writer Idle again. Cancelling the context
// passed to New reaches the backend call, and Write reports whatever that
// call returned.
func (w *ObjectWriter) Write(p []byte) (int, error) {
	for {
		n, err := w.PollWrite(p)
		if !errors.Is(err, ErrPending) {
			return n, err
		}
		<-w.Ready()
	}
}

// Flush does nothing: an accepted write has already been appended.
func (w *ObjectWriter) Flush() error {
	return nil
}

// Close implements io.Closer by polling until the backend close completes.
// Like Write, it returns with the writer Idle again.
func (w *ObjectWriter) Close() error {
	for {
		err := w.PollClose()
		if !errors.Is(err, ErrPending) {
			return err
		}
		<-w.Ready()
	}
}

// take moves the block writer out of the Idle slot.
func (w *ObjectWriter) take() objectstore.BlockWriter {
	bw := w.w
	if bw == nil {
		panic(errors.AssertionFailedf("invalid state of writer: Idle without block writer"))
	}
	w.w = nil
	return bw
}

// start runs call on its own goroutine. The returned op keeps bw until the
// call returns, whatever its outcome.
func (w *ObjectWriter) start(bw objectstore.BlockWriter, size int, call func(context.Context) error) *op {
	o := &op{done: make(chan struct{}), w: bw, size: size}
	go func() {
		defer close(o.done)
		o.err = call(w.ctx)
	}()
	return o
}

// finish moves a completed op's block writer back into the Idle slot.
func (w *ObjectWriter) finish() (*op, bool) {
	o := w.op
	select {
	case <-o.done:
	default:
		return nil, false
	}
	w.w = o.w
	w.op = nil
	w.state = stateIdle
	return o, true
}

func (w *ObjectWriter) logFailure(operation string, err error) {
	fields := map[string]any{
		"operation": operation,
		"error":     err.Error(),
		"kind":      objectstore.KindOf(err).String(),
		"retryable": objectstore.IsRetryable(err),
	}
	var oerr *objectstore.Error
	if errors.As(err, &oerr) {
		if id, ok := oerr.ContextValue("request_id"); ok {
			w.log.WithRequestID(id).Warnf("backend call failed", fields)
			return
		}
	}
	w.log.Warnf("backend call failed", fields)
}

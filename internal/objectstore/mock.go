package objectstore

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MockStore is an in-memory implementation of the Store interface for testing.
//
// Objects become visible when their write session is closed. Failures can be
// injected per operation with FailNext.
type MockStore struct {
	mu       sync.RWMutex
	objects  map[string]mockObject
	failures map[string][]error
	appends  int
	closed   bool
}

type mockObject struct {
	data []byte
	meta ObjectMeta
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		objects:  make(map[string]mockObject),
		failures: make(map[string][]error),
	}
}

// FailNext makes the next call of op ("Append", "Close", "Write", "Head" or
// "Delete") fail with err. Calls queue up in order.
func (s *MockStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

func (s *MockStore) injected(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	s.failures[op] = queue[1:]
	return queue[0]
}

// Object returns the committed content of key.
func (s *MockStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// AppendCount returns the number of successful appends across all sessions.
func (s *MockStore) AppendCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appends
}

func (s *MockStore) Write(ctx context.Context, key string, opts WriteOptions) (BlockWriter, error) {
	if err := s.injected("Write"); err != nil {
		return nil, err
	}
	return &mockWriter{store: s, key: key, opts: opts}, nil
}

func (s *MockStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	if err := s.injected("Head"); err != nil {
		return ObjectMeta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return ObjectMeta{}, NewError(KindObjectNotFound, "no such key").WithOperation("Head", key)
	}
	return obj.meta, nil
}

func (s *MockStore) Delete(ctx context.Context, key string) error {
	if err := s.injected("Delete"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

func (s *MockStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type mockWriter struct {
	store  *MockStore
	key    string
	opts   WriteOptions
	buf    []byte
	closed bool
}

func (w *mockWriter) Append(ctx context.Context, block []byte) error {
	if w.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.store.injected("Append"); err != nil {
		return err
	}
	w.buf = append(w.buf, block...)

	w.store.mu.Lock()
	w.store.appends++
	w.store.mu.Unlock()
	return nil
}

func (w *mockWriter) Close(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.store.injected("Close"); err != nil {
		return err
	}

	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	w.closed = true
	w.store.objects[w.key] = mockObject{
		data: w.buf,
		meta: ObjectMeta{
			Key:          w.key,
			Size:         int64(len(w.buf)),
			ContentType:  w.opts.ContentTypeOrDefault(),
			ETag:         "mock-" + strconv.Itoa(len(w.buf)),
			LastModified: time.Now().UnixMilli(),
			Metadata:     w.opts.Metadata,
		},
	}
	return nil
}

var _ Store = (*MockStore)(nil)

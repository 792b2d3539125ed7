package objectstore

import (
	"context"
	"errors"
	"testing"
)

func TestMockStoreCommitsOnClose(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	w, err := store.Write(ctx, "obj", WriteOptions{Metadata: map[string]string{"owner": "ops"}})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	for _, block := range []string{"a", "b", "c"} {
		if err := w.Append(ctx, []byte(block)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if _, ok := store.Object("obj"); ok {
		t.Fatal("object visible before Close")
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, ok := store.Object("obj")
	if !ok || string(data) != "abc" {
		t.Fatalf("expected %q, got %q (ok=%v)", "abc", data, ok)
	}
	if store.AppendCount() != 3 {
		t.Errorf("AppendCount = %d, want 3", store.AppendCount())
	}

	meta, err := store.Head(ctx, "obj")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if meta.Size != 3 || meta.ContentType != DefaultContentType || meta.Metadata["owner"] != "ops" {
		t.Errorf("unexpected meta %+v", meta)
	}

	if err := w.Append(ctx, []byte("d")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestMockStoreFailNext(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	injected := NewError(KindUnexpected, "slow down").SetTemporary()
	store.FailNext("Append", injected)

	w, err := store.Write(ctx, "obj", WriteOptions{})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Append(ctx, []byte("x")); !IsRetryable(err) {
		t.Fatalf("expected injected retryable error, got %v", err)
	}
	if err := w.Append(ctx, []byte("y")); err != nil {
		t.Fatalf("second Append should succeed: %v", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if data, _ := store.Object("obj"); string(data) != "y" {
		t.Errorf("failed block must not be stored, got %q", data)
	}
}

func TestMockStoreHeadMissing(t *testing.T) {
	_, err := NewMockStore().Head(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var oerr *Error
	if !errors.As(err, &oerr) || oerr.Op != "Head" || oerr.Key != "missing" {
		t.Errorf("expected Head error for key, got %+v", oerr)
	}
}

func TestMockStoreDeleteAndClose(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	w, _ := store.Write(ctx, "obj", WriteOptions{})
	_ = w.Close(ctx)
	if err := store.Delete(ctx, "obj"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := store.Object("obj"); ok {
		t.Error("object still present after Delete")
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := store.Write(ctx, "obj", WriteOptions{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

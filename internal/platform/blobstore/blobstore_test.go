package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func testStoreRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	size, hash, err := store.Save(ctx, "att-1", strings.NewReader("hello world"), 1024)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if size != 11 {
		t.Errorf("size = %d, want 11", size)
	}
	if len(hash) != 64 {
		t.Errorf("expected sha256 hex digest, got %q", hash)
	}

	rc, err := store.Open(ctx, "att-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("content = %q, want %q", data, "hello world")
	}

	if err := store.Delete(ctx, "att-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Open(ctx, "att-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func testStoreLimits(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, _, err := store.Save(ctx, "big", strings.NewReader(strings.Repeat("x", 100)), 10)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}

	_, _, err = store.Save(ctx, "", strings.NewReader("x"), 10)
	if !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		testStoreRoundTrip(t, NewMemoryStore())
	})
	t.Run("limits", func(t *testing.T) {
		testStoreLimits(t, NewMemoryStore())
	})
}

func TestDiskStore(t *testing.T) {
	newDisk := func(t *testing.T) Store {
		store, err := NewDiskStore(t.TempDir())
		if err != nil {
			t.Fatalf("new disk store: %v", err)
		}
		return store
	}

	t.Run("round trip", func(t *testing.T) {
		testStoreRoundTrip(t, newDisk(t))
	})
	t.Run("limits", func(t *testing.T) {
		testStoreLimits(t, newDisk(t))
	})
	t.Run("rejects traversal keys", func(t *testing.T) {
		ctx := context.Background()
		store := newDisk(t)
		if _, _, err := store.Save(ctx, "../escape", strings.NewReader("x"), 10); err != nil {
			// Stored under the sanitized basename, never outside root.
			t.Fatalf("save: %v", err)
		}
		rc, err := store.Open(ctx, "escape")
		if err != nil {
			t.Fatalf("expected content under sanitized key: %v", err)
		}
		rc.Close()
	})
}

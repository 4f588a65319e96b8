package blob

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("value"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, found, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || string(got) != "value" {
		t.Fatalf("unexpected result: found=%v value=%q", found, got)
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.json")
	ctx := context.Background()

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.Set(ctx, "k1", []byte("persisted"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, found, err := reopened.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || string(got) != "persisted" {
		t.Fatalf("value lost across reopen: found=%v value=%q", found, got)
	}
}

func TestFileStore_TTLExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("value"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, found, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Errorf("expected expired key to be absent")
	}
}

func TestFileStore_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	_ = store.Set(ctx, "k1", []byte("value"), 0)
	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, found, _ := store.Get(ctx, "k1")
	if found {
		t.Errorf("expected deleted key to be absent")
	}
}

func TestFileStore_EmptyPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

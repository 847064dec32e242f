package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRecordAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := filetransfer.Record{
		Operation: wire.OpUploadFile,
		Path:      "results/out.rst",
		Size:      1024,
		Bytes:     1024,
		SHA1:      "a9993e364706816aba3e25717850c26c9cd0d89d",
		Status:    wire.StatusOK,
		Interface: log.InterfaceStream,
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}
	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}

	entries, err := store.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	got := entries[0]
	if got.ID == "" {
		t.Error("Expected an ID to be assigned")
	}
	if got.Kind != "upload" {
		t.Errorf("Expected kind 'upload', got %q", got.Kind)
	}
	if got.Path != rec.Path || got.Size != 1024 || got.Bytes != 1024 {
		t.Errorf("Unexpected entry %+v", got)
	}
	if got.SHA1 != rec.SHA1 {
		t.Errorf("Expected sha1 %q, got %q", rec.SHA1, got.SHA1)
	}
	if got.Status != "OK" {
		t.Errorf("Expected status 'OK', got %q", got.Status)
	}
	if got.Interface != "stream" {
		t.Errorf("Expected interface 'stream', got %q", got.Interface)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("Expected started_at %v, got %v", started, got.StartedAt)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Expected duration 1.5s, got %v", got.Duration)
	}
}

func TestStoreListOrderAndPaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := store.Record(ctx, filetransfer.Record{
			Operation: wire.OpDownloadFile,
			Path:      string(rune('a' + i)),
			Status:    wire.StatusOK,
			Interface: log.InterfaceREST,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
	}

	entries, err := store.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(entries) != 2 || entries[0].Path != "e" || entries[1].Path != "d" {
		t.Fatalf("Expected newest first [e d], got %+v", entries)
	}

	entries, err = store.List(ctx, 2, 4)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "a" {
		t.Fatalf("Expected [a], got %+v", entries)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected count 5, got %d", n)
	}
}

func TestStoreFailureRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Record(ctx, filetransfer.Record{
		Operation: wire.OpDeleteFile,
		Path:      "missing",
		Status:    wire.StatusFailedPrecondition,
		Message:   "File does not exist: missing",
		StartedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to record: %v", err)
	}

	entries, err := store.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Kind != "delete" || entries[0].Status != "FAILED_PRECONDITION" {
		t.Errorf("Unexpected entry %+v", entries[0])
	}
	if entries[0].Message != "File does not exist: missing" {
		t.Errorf("Unexpected message %q", entries[0].Message)
	}
	if entries[0].SHA1 != "" {
		t.Errorf("Expected empty sha1, got %q", entries[0].SHA1)
	}
}

func TestStoreEmptyList(t *testing.T) {
	store := newTestStore(t)
	entries, err := store.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", entries)
	}
}

func TestStorePersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	err = store.Record(context.Background(), filetransfer.Record{
		Operation: wire.OpUploadFile, Path: "x", Status: wire.StatusOK, StartedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to record: %v", err)
	}
	store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()
	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 entry after reopen, got %d", n)
	}
}

func TestKind(t *testing.T) {
	tests := map[wire.Operation]string{
		wire.OpDownloadFile: "download",
		wire.OpUploadFile:   "upload",
		wire.OpDeleteFile:   "delete",
		wire.OpHello:        "other",
	}
	for op, want := range tests {
		if got := Kind(op); got != want {
			t.Errorf("Kind(%s) = %q, want %q", op, got, want)
		}
	}
}

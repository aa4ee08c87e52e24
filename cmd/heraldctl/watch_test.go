package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchFilesCallsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "msg.yaml")
	other := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(path, []byte("content: a"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFiles(ctx, []string{path}, func() { calls.Add(1) })
	}()

	// Writes to unrelated files in the same directory are ignored.
	if err := os.WriteFile(other, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected a call after writing %s", path)
		}
		if err := os.WriteFile(path, []byte("content: b"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(200 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop after cancel")
	}
}

func TestWatchFilesMissingDirectory(t *testing.T) {
	err := watchFiles(context.Background(), []string{filepath.Join(t.TempDir(), "nope", "msg.yaml")}, func() {})
	if err == nil {
		t.Fatalf("expected an error for a missing directory")
	}
}

package wal_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jonesrussell/goprospect/internal/wal"
)

func readEvents(t *testing.T, path string) []wal.Event {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read wal file: %v", err)
	}

	events := []wal.Event{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var event wal.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("line %q is not valid JSON: %v", line, err)
		}
		events = append(events, event)
	}
	return events
}

func TestLog_AppendWritesNDJSON(t *testing.T) {
	dir := t.TempDir()

	log, err := wal.Open(dir, "worker-1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := log.TargetStart(42); err != nil {
		t.Fatalf("TargetStart failed: %v", err)
	}
	if err := log.PageCheckpoint(42, 1); err != nil {
		t.Fatalf("PageCheckpoint failed: %v", err)
	}
	if err := log.TargetComplete(42, "done"); err != nil {
		t.Fatalf("TargetComplete failed: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := readEvents(t, filepath.Join(dir, "worker-1.ndjson"))
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}

	if events[0].Event != wal.EventTargetStart || events[0].TargetID != 42 {
		t.Errorf("first event = %+v, want target_start for 42", events[0])
	}
	if events[1].Event != wal.EventPageCheckpoint || events[1].Page != 1 {
		t.Errorf("second event = %+v, want page_checkpoint page 1", events[1])
	}
	if events[2].Event != wal.EventTargetComplete || events[2].Outcome != "done" {
		t.Errorf("third event = %+v, want target_complete done", events[2])
	}

	for i, event := range events {
		if event.WorkerID != "worker-1" {
			t.Errorf("event %d worker_id = %q, want worker-1", i, event.WorkerID)
		}
		if event.TS.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}
}

func TestLog_ReopenAppends(t *testing.T) {
	dir := t.TempDir()

	first, err := wal.Open(dir, "worker-2")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := first.TargetStart(1); err != nil {
		t.Fatalf("TargetStart failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := wal.Open(dir, "worker-2")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if err := second.TargetStart(2); err != nil {
		t.Fatalf("TargetStart after reopen failed: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := readEvents(t, filepath.Join(dir, "worker-2.ndjson"))
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 after reopen", len(events))
	}
	if events[0].TargetID != 1 || events[1].TargetID != 2 {
		t.Errorf("events out of order: %+v", events)
	}
}

func TestLog_AppendAfterCloseFails(t *testing.T) {
	log, err := wal.Open(t.TempDir(), "worker-3")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := log.TargetStart(1); err == nil {
		t.Error("expected append after close to fail")
	}
	if err := log.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestLog_ConcurrentAppends(t *testing.T) {
	dir := t.TempDir()

	log, err := wal.Open(dir, "worker-4")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := range 10 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for range 10 {
				if appendErr := log.TargetStart(id); appendErr != nil {
					t.Errorf("append failed: %v", appendErr)
				}
			}
		}(int64(g))
	}
	wg.Wait()

	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := readEvents(t, filepath.Join(dir, "worker-4.ndjson"))
	if len(events) != 100 {
		t.Errorf("len(events) = %d, want 100 intact lines", len(events))
	}
}

func TestLog_SanitizesWorkerIDInFileName(t *testing.T) {
	dir := t.TempDir()

	log, err := wal.Open(dir, "host.example:4412:0")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := log.TargetStart(1); err != nil {
		t.Fatalf("TargetStart failed: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, statErr := os.Stat(filepath.Join(dir, "host.example-4412-0.ndjson")); statErr != nil {
		t.Errorf("expected sanitized file name: %v", statErr)
	}

	events := readEvents(t, filepath.Join(dir, "host.example-4412-0.ndjson"))
	if len(events) != 1 || events[0].WorkerID != "host.example:4412:0" {
		t.Errorf("events = %+v, want original worker id preserved in payload", events)
	}
}

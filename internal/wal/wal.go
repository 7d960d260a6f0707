// Package wal writes per-worker append-only NDJSON logs of lifecycle
// transitions. The database is the source of truth; these files exist so
// an operator can replay what a worker did around a crash or a block
// without querying anything.
package wal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event names written to the log.
const (
	EventWorkerStart    = "worker_start"
	EventWorkerStop     = "worker_stop"
	EventTargetStart    = "target_start"
	EventTargetComplete = "target_complete"
	EventPageCheckpoint = "page_checkpoint"
	EventTargetRequeued = "target_requeued"
)

// Event is one NDJSON line.
type Event struct {
	Event    string    `json:"event"`
	WorkerID string    `json:"worker_id"`
	TargetID int64     `json:"target_id,omitempty"`
	Page     int       `json:"page,omitempty"`
	Outcome  string    `json:"outcome,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	TS       time.Time `json:"ts"`
}

// Log is an append-only event log for one worker. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	workerID string
	now      func() time.Time
}

// Open creates or appends to the worker's log file under dir.
func Open(dir, workerID string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create wal directory: %w", err)
	}

	path := filepath.Join(dir, fileName(workerID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open wal file: %w", err)
	}

	return &Log{
		file:     file,
		enc:      json.NewEncoder(file),
		workerID: workerID,
		now:      time.Now,
	}, nil
}

// fileName maps a worker ID to a filesystem-safe NDJSON file name.
// Worker IDs embed the host name and run ID, which can carry separators.
func fileName(workerID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, workerID)
	return safe + ".ndjson"
}

// Append writes one event line. The worker ID and timestamp are filled in
// when absent.
func (l *Log) Append(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("wal closed")
	}

	event.WorkerID = l.workerID
	if event.TS.IsZero() {
		event.TS = l.now().UTC()
	}

	if err := l.enc.Encode(event); err != nil {
		return fmt.Errorf("failed to append wal event: %w", err)
	}
	return nil
}

// TargetStart records a claim.
func (l *Log) TargetStart(targetID int64) error {
	return l.Append(Event{Event: EventTargetStart, TargetID: targetID})
}

// TargetComplete records how a crawl ended.
func (l *Log) TargetComplete(targetID int64, outcome string) error {
	return l.Append(Event{Event: EventTargetComplete, TargetID: targetID, Outcome: outcome})
}

// PageCheckpoint records a committed page.
func (l *Log) PageCheckpoint(targetID int64, page int) error {
	return l.Append(Event{Event: EventPageCheckpoint, TargetID: targetID, Page: page})
}

// TargetRequeued records a target returned to the queue with its reason.
func (l *Log) TargetRequeued(targetID int64, detail string) error {
	return l.Append(Event{Event: EventTargetRequeued, TargetID: targetID, Detail: detail})
}

// Close syncs and closes the file. Further appends fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil

	if syncErr != nil {
		return fmt.Errorf("failed to sync wal file: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close wal file: %w", closeErr)
	}
	return nil
}

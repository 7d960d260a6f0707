// Package stats aggregates run-level counters across workers and renders
// the shutdown summary. One Collector is shared by the whole pool.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Collector holds the run counters. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	startedAt        time.Time
	targetsDone      int64
	targetsFailed    int64
	targetsRequeued  int64
	earlyExits       int64
	pages            int64
	listingsSeen     int64
	listingsAccepted int64
	rejectsByReason  map[string]int64
	upsertsByResult  map[string]int64

	now func() time.Time
}

// NewCollector creates a collector with the clock started.
func NewCollector() *Collector {
	return &Collector{
		startedAt:       time.Now(),
		rejectsByReason: make(map[string]int64),
		upsertsByResult: make(map[string]int64),
		now:             time.Now,
	}
}

// TargetDone counts a target crawled to completion.
func (c *Collector) TargetDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetsDone++
}

// TargetFailed counts a target given up on.
func (c *Collector) TargetFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetsFailed++
}

// TargetRequeued counts a target returned to the queue mid-crawl.
func (c *Collector) TargetRequeued() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetsRequeued++
}

// EarlyExit counts a target finished on an empty first page.
func (c *Collector) EarlyExit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.earlyExits++
}

// RecordPage counts one committed page and its listing tallies.
func (c *Collector) RecordPage(seen, accepted int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages++
	c.listingsSeen += int64(seen)
	c.listingsAccepted += int64(accepted)
}

// RecordReject counts one refused listing by reason.
func (c *Collector) RecordReject(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectsByReason[reason]++
}

// RecordUpsert counts one persistence outcome (inserted/updated/skipped).
func (c *Collector) RecordUpsert(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertsByResult[result]++
}

// Summary is the JSON document written at shutdown.
type Summary struct {
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
	DurationSeconds  float64          `json:"duration_seconds"`
	TargetsDone      int64            `json:"targets_done"`
	TargetsFailed    int64            `json:"targets_failed"`
	TargetsRequeued  int64            `json:"targets_requeued"`
	EarlyExits       int64            `json:"early_exits"`
	Pages            int64            `json:"pages"`
	ListingsSeen     int64            `json:"listings_seen"`
	ListingsAccepted int64            `json:"listings_accepted"`
	RejectsByReason  map[string]int64 `json:"rejects_by_reason"`
	UpsertsByResult  map[string]int64 `json:"upserts_by_result"`
}

// Summary snapshots the counters.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	finished := c.now()
	summary := Summary{
		StartedAt:        c.startedAt,
		FinishedAt:       finished,
		DurationSeconds:  finished.Sub(c.startedAt).Seconds(),
		TargetsDone:      c.targetsDone,
		TargetsFailed:    c.targetsFailed,
		TargetsRequeued:  c.targetsRequeued,
		EarlyExits:       c.earlyExits,
		Pages:            c.pages,
		ListingsSeen:     c.listingsSeen,
		ListingsAccepted: c.listingsAccepted,
		RejectsByReason:  make(map[string]int64, len(c.rejectsByReason)),
		UpsertsByResult:  make(map[string]int64, len(c.upsertsByResult)),
	}
	for reason, n := range c.rejectsByReason {
		summary.RejectsByReason[reason] = n
	}
	for result, n := range c.upsertsByResult {
		summary.UpsertsByResult[result] = n
	}
	return summary
}

// WriteSummary writes the summary JSON to path, creating parent
// directories as needed.
func (c *Collector) WriteSummary(path string) error {
	if path == "" {
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(c.Summary(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}

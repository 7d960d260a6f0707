package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	fetchconfig "github.com/jonesrussell/goprospect/internal/config/fetch"
	limiterconfig "github.com/jonesrussell/goprospect/internal/config/limiter"
	poolconfig "github.com/jonesrussell/goprospect/internal/config/pool"
	"github.com/jonesrussell/goprospect/internal/crawl"
	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/fetch"
	"github.com/jonesrussell/goprospect/internal/health"
	"github.com/jonesrussell/goprospect/internal/logger"
	"github.com/jonesrussell/goprospect/internal/wal"
)

// stopPollInterval is how often sleeping workers re-check the stop flag.
const stopPollInterval = 250 * time.Millisecond

// worker claims targets from its shard and crawls them one at a time. It
// owns its fetcher, health monitor, and write-ahead log; the stores are
// shared with the rest of the pool.
type worker struct {
	id     string
	index  int
	states []string

	deps       *ManagerDeps
	poolCfg    *poolconfig.Config
	fetchCfg   *fetchconfig.Config
	limiterCfg *limiterconfig.Config

	stopped func() bool
	state   *workerState
	log     logger.Interface
}

// run is the worker main loop. It returns nil on a clean stop; an error
// means the worker could not set up or lost its claim loop.
func (w *worker) run(ctx context.Context) error {
	// Staggered starts keep the workers from stampeding the directory
	// and the claim query at once.
	if !w.wait(ctx, time.Duration(w.index)*w.poolCfg.StaggerDelay) {
		return nil
	}

	journal, err := wal.Open(w.poolCfg.WALDir, w.id)
	if err != nil {
		return err
	}
	defer journal.Close() //nolint:errcheck // nothing to do about a close error on the way out
	w.append(journal, wal.Event{Event: wal.EventWorkerStart})
	defer w.append(journal, wal.Event{Event: wal.EventWorkerStop})

	monitor := health.NewMonitor(w.limiterCfg)
	factory := w.deps.Fetchers
	if factory == nil {
		factory = fetch.New
	}
	fetcher, err := newWorkerFetcher(factory, w.fetchCfg, w.index, w.deps.Proxies, monitor, w.log)
	if err != nil {
		return err
	}
	defer fetcher.Close() //nolint:errcheck // browser teardown errors are not actionable

	runner, err := crawl.NewRunner(crawl.Deps{
		Targets:   w.deps.Targets,
		Companies: w.deps.Companies,
		Rejects:   w.deps.Rejects,
		Source:    w.deps.Source,
		Fetcher:   fetcher,
		Filter:    w.deps.Filter,
		Monitor:   monitor,
		Logger:    w.log,
		Journal:   journal,
		Stats:     w.deps.Stats,
		Mirror:    w.deps.Mirror,
	}, crawl.Config{
		MaxPagesOverride: w.poolCfg.MaxPagesOverride,
		Seed:             workerSeed(w.fetchCfg.HumanizeSeed, w.index),
	})
	if err != nil {
		return err
	}

	w.log.Info("worker started", "states", w.states)

	for {
		if w.stopped() || ctx.Err() != nil {
			w.log.Info("worker stopping")
			return nil
		}
		if err := w.claimAndCrawl(ctx, runner, fetcher, journal); err != nil {
			return err
		}
	}
}

// claimAndCrawl processes one claim cycle: at most one target, or an idle
// backoff when the shard has nothing claimable.
func (w *worker) claimAndCrawl(ctx context.Context, runner *crawl.Runner, fetcher fetch.Fetcher, journal *wal.Log) error {
	target, err := w.deps.Targets.Claim(ctx, database.ClaimParams{
		WorkerID:    w.id,
		States:      w.states,
		MaxPerState: w.poolCfg.MaxPerState,
	})
	if errors.Is(err, database.ErrNoTargetAvailable) {
		w.state.beat(0)
		w.wait(ctx, w.poolCfg.IdleBackoff)
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		w.log.Error("claim failed", "error", err.Error())
		w.wait(ctx, w.poolCfg.IdleBackoff)
		return nil
	}

	w.state.beat(target.ID)
	w.append(journal, wal.Event{Event: wal.EventTargetStart, TargetID: target.ID})

	outcome, runErr := runner.Run(ctx, target, w.stopped)
	if runErr != nil {
		w.log.WithTarget(target.ID).Error("crawl aborted",
			"outcome", outcome, "error", runErr.Error())
	}

	w.append(journal, wal.Event{Event: wal.EventTargetComplete, TargetID: target.ID, Outcome: outcome})
	w.state.finish(outcome)
	w.recordOutcome(outcome)

	// Rotation bookkeeping; the browser mode rebuilds its context with a
	// fresh fingerprint every 15-25 targets.
	if finishErr := fetcher.FinishTarget(ctx); finishErr != nil {
		w.log.Warn("failed to finish fetcher target", "error", finishErr.Error())
	}
	return nil
}

// newWorkerFetcher builds the worker's private fetcher. Each worker gets
// its own copy of the fetch configuration so a fixed humanize seed still
// produces distinct pacing streams per worker.
func newWorkerFetcher(
	factory FetcherFactory,
	cfg *fetchconfig.Config,
	index int,
	proxies fetch.ProxySource,
	monitor *health.Monitor,
	log logger.Interface,
) (fetch.Fetcher, error) {
	workerCfg := *cfg
	workerCfg.HumanizeSeed = workerSeed(cfg.HumanizeSeed, index)
	return factory(&workerCfg, proxies, monitor, log)
}

// recordOutcome rolls the crawl outcome into the run summary.
func (w *worker) recordOutcome(outcome string) {
	if w.deps.Stats == nil {
		return
	}
	switch outcome {
	case crawl.OutcomeDone:
		w.deps.Stats.TargetDone()
	case crawl.OutcomeDoneEarly:
		w.deps.Stats.TargetDone()
		w.deps.Stats.EarlyExit()
	case crawl.OutcomeFailed:
		w.deps.Stats.TargetFailed()
	case crawl.OutcomeRequeued, crawl.OutcomeStopped:
		w.deps.Stats.TargetRequeued()
	}
}

// wait sleeps for d, polling the stop flag. It reports false when the
// sleep was interrupted by stop or cancellation.
func (w *worker) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !w.stopped() && ctx.Err() == nil
	}
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	poll := time.NewTicker(stopPollInterval)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return true
		case <-poll.C:
			if w.stopped() {
				return false
			}
		}
	}
}

// append best-effort writes one WAL event.
func (w *worker) append(journal *wal.Log, event wal.Event) {
	if err := journal.Append(event); err != nil {
		w.log.Warn("failed to append wal event", "event", event.Event, "error", err.Error())
	}
}

// workerSeed gives each worker its own deterministic pacing stream when a
// fixed seed is configured. A zero seed stays zero so each pacer draws
// from the clock.
func workerSeed(seed int64, index int) int64 {
	if seed == 0 {
		return 0
	}
	return seed + int64(index)
}

// workerState is the supervisor's view of one worker, updated by the
// worker and read by Snapshot.
type workerState struct {
	id     string
	states []string

	mu          sync.Mutex
	lastBeat    time.Time
	targetID    int64
	targets     int64
	lastOutcome string
	exited      bool
	lastError   string
}

func (s *workerState) beat(targetID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBeat = time.Now().UTC()
	s.targetID = targetID
}

func (s *workerState) finish(outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBeat = time.Now().UTC()
	s.targetID = 0
	s.targets++
	s.lastOutcome = outcome
}

func (s *workerState) recordExit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exited = true
	if err != nil {
		s.lastError = err.Error()
	}
}

func (s *workerState) snapshot() WorkerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WorkerSnapshot{
		ID:          s.id,
		States:      s.states,
		LastBeat:    s.lastBeat,
		TargetID:    s.targetID,
		Targets:     s.targets,
		LastOutcome: s.lastOutcome,
		Exited:      s.exited,
		LastError:   s.lastError,
	}
}

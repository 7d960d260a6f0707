// Package pool runs the worker fleet: it shards states across workers,
// staggers their starts, recovers orphaned claims on a schedule, and
// exposes a supervisor view with a bounded stop-all.
package pool

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	fetchconfig "github.com/jonesrussell/goprospect/internal/config/fetch"
	limiterconfig "github.com/jonesrussell/goprospect/internal/config/limiter"
	poolconfig "github.com/jonesrussell/goprospect/internal/config/pool"
	"github.com/jonesrussell/goprospect/internal/crawl"
	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/directory"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/fetch"
	"github.com/jonesrussell/goprospect/internal/filter"
	"github.com/jonesrussell/goprospect/internal/logger"
	"github.com/jonesrussell/goprospect/internal/stats"
)

// TargetSource is the slice of the target store the pool needs: claiming
// for workers, recovery sweeps, and status counts for the supervisor. It
// embeds everything the per-target crawl runner uses.
type TargetSource interface {
	crawl.TargetStore
	Claim(ctx context.Context, params database.ClaimParams) (*domain.Target, error)
	RecoverOrphans(ctx context.Context, staleAfter time.Duration) (int64, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
}

// FetcherFactory builds one fetcher per worker. The default is fetch.New.
type FetcherFactory func(
	cfg *fetchconfig.Config,
	proxies fetch.ProxySource,
	delays fetch.DelaySource,
	log logger.Interface,
) (fetch.Fetcher, error)

// ManagerDeps wires the pool to shared collaborators. Workers build
// their own fetchers, monitors, and write-ahead logs on top of these.
// Fetchers, Stats, and Mirror are optional.
type ManagerDeps struct {
	Targets   TargetSource
	Companies crawl.CompanyWriter
	Rejects   crawl.RejectWriter
	Source    directory.Source
	Filter    *filter.Filter
	Proxies   fetch.ProxySource
	Logger    logger.Interface
	Stats     *stats.Collector
	Mirror    crawl.Mirror
	Fetchers  FetcherFactory
}

func (d ManagerDeps) validate() error {
	switch {
	case d.Targets == nil:
		return fmt.Errorf("pool: target source is required")
	case d.Companies == nil:
		return fmt.Errorf("pool: company writer is required")
	case d.Rejects == nil:
		return fmt.Errorf("pool: reject writer is required")
	case d.Source == nil:
		return fmt.Errorf("pool: directory source is required")
	case d.Filter == nil:
		return fmt.Errorf("pool: filter is required")
	case d.Proxies == nil:
		return fmt.Errorf("pool: proxy source is required")
	case d.Logger == nil:
		return fmt.Errorf("pool: logger is required")
	}
	return nil
}

// ManagerConfig groups the configuration sections the pool consumes.
type ManagerConfig struct {
	Pool    *poolconfig.Config
	Fetch   *fetchconfig.Config
	Limiter *limiterconfig.Config
}

// WorkerSnapshot is one worker's row in the supervisor view.
type WorkerSnapshot struct {
	ID          string    `json:"id"`
	States      []string  `json:"states"`
	LastBeat    time.Time `json:"last_beat"`
	TargetID    int64     `json:"target_id,omitempty"`
	Targets     int64     `json:"targets_processed"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	Exited      bool      `json:"exited"`
	LastError   string    `json:"last_error,omitempty"`
}

// Snapshot is the supervisor view: worker heartbeats plus target counts
// by status straight from the store.
type Snapshot struct {
	Workers      []WorkerSnapshot `json:"workers"`
	TargetCounts map[string]int   `json:"target_counts"`
	Stopping     bool             `json:"stopping"`
}

// Manager owns the worker fleet for one process.
type Manager struct {
	deps ManagerDeps
	cfg  ManagerConfig
	log  logger.Interface

	cron     *cron.Cron
	stopping atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	workers []*workerState
}

// NewManager validates the wiring and prepares a manager. Start launches
// the fleet.
func NewManager(deps ManagerDeps, cfg ManagerConfig) (*Manager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.Pool == nil {
		return nil, fmt.Errorf("pool: pool configuration is required")
	}
	if err := cfg.Pool.Validate(); err != nil {
		return nil, fmt.Errorf("pool: invalid configuration: %w", err)
	}
	if cfg.Fetch == nil {
		return nil, fmt.Errorf("pool: fetch configuration is required")
	}
	return &Manager{
		deps: deps,
		cfg:  cfg,
		log:  deps.Logger.WithComponent("pool"),
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}, nil
}

// Start recovers orphans, launches the workers, and schedules periodic
// recovery sweeps. It does not block; use Wait to join the fleet.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("pool: already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if recovered, err := m.deps.Targets.RecoverOrphans(runCtx, m.cfg.Pool.OrphanTimeout); err != nil {
		m.log.Error("orphan recovery failed on startup", "error", err.Error())
	} else if recovered > 0 {
		m.log.Info("recovered orphaned targets", "count", recovered)
	}
	if err := m.scheduleRecovery(runCtx); err != nil {
		cancel()
		return err
	}

	shards := ShardStates(m.cfg.Pool.States, m.cfg.Pool.Workers)
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	// A fresh run ID per fleet keeps claimed_by unambiguous across
	// restarts; pids recycle, uuid fragments do not.
	runID := uuid.NewString()[:8]

	for i := range m.cfg.Pool.Workers {
		shard := shards[i]
		if len(m.cfg.Pool.States) > 0 && len(shard) == 0 {
			m.log.Warn("worker has no states, not starting", "worker_index", i)
			continue
		}

		id := fmt.Sprintf("%s:%s:%d", hostname, runID, i)
		state := &workerState{id: id, states: shard}
		m.workers = append(m.workers, state)

		w := &worker{
			id:         id,
			index:      i,
			states:     shard,
			deps:       &m.deps,
			poolCfg:    m.cfg.Pool,
			fetchCfg:   m.cfg.Fetch,
			limiterCfg: m.cfg.Limiter,
			stopped:    m.stopping.Load,
			state:      state,
			log:        m.log.WithWorker(id),
		}
		m.log.Info("starting worker", "worker_id", id, "states", shard)

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if runErr := w.run(runCtx); runErr != nil {
				m.log.Error("worker exited abnormally", "worker_id", w.id, "error", runErr.Error())
				w.state.recordExit(runErr)
				return
			}
			w.state.recordExit(nil)
		}()
	}

	m.cron.Start()
	m.started = true
	return nil
}

// scheduleRecovery runs the orphan sweep every OrphanCheckInterval.
func (m *Manager) scheduleRecovery(ctx context.Context) error {
	interval := m.cfg.Pool.OrphanCheckInterval
	if interval <= 0 {
		interval = poolconfig.DefaultOrphanCheckInterval
	}
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		recovered, sweepErr := m.deps.Targets.RecoverOrphans(ctx, m.cfg.Pool.OrphanTimeout)
		if sweepErr != nil {
			m.log.Error("orphan sweep failed", "error", sweepErr.Error())
			return
		}
		if recovered > 0 {
			m.log.Warn("orphan sweep recovered targets", "count", recovered)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule orphan sweep: %w", err)
	}
	return nil
}

// Wait blocks until every worker goroutine has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stop sets the shared stop flag, waits up to StopTimeout for workers to
// finish their current page and requeue, then force-cancels the rest.
// Safe to call more than once.
func (m *Manager) Stop() {
	if !m.stopping.CompareAndSwap(false, true) {
		return
	}
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return
	}
	m.log.Info("stop requested, waiting for workers",
		"timeout", m.cfg.Pool.StopTimeout)

	cronDone := m.cron.Stop()
	<-cronDone.Done()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("all workers stopped")
	case <-time.After(m.cfg.Pool.StopTimeout):
		m.log.Warn("graceful stop timed out, force-terminating")
		m.cancel()
		<-done
	}
	m.cancel()
}

// Stopping reports whether a stop has been requested.
func (m *Manager) Stopping() bool {
	return m.stopping.Load()
}

// Snapshot returns the supervisor view of the fleet.
func (m *Manager) Snapshot(ctx context.Context) (*Snapshot, error) {
	counts, err := m.deps.Targets.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count targets: %w", err)
	}

	m.mu.Lock()
	workers := make([]WorkerSnapshot, 0, len(m.workers))
	for _, state := range m.workers {
		workers = append(workers, state.snapshot())
	}
	m.mu.Unlock()

	return &Snapshot{
		Workers:      workers,
		TargetCounts: counts,
		Stopping:     m.stopping.Load(),
	}, nil
}

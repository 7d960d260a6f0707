// Package crawl walks one claimed target through its page budget: fetch,
// parse, filter, and checkpoint each results page. Directory pushback
// requeues the target with an exponential cool-down; transient page
// failures are tolerated up to a small consecutive budget.
package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/directory"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/fetch"
	"github.com/jonesrussell/goprospect/internal/filter"
	"github.com/jonesrussell/goprospect/internal/health"
	"github.com/jonesrussell/goprospect/internal/logger"
	"github.com/jonesrussell/goprospect/internal/stats"
)

// Crawl outcomes reported to the worker loop and the write-ahead log.
const (
	OutcomeDone      = "done"
	OutcomeDoneEarly = "done_early"
	OutcomeRequeued  = "requeued"
	OutcomeFailed    = "failed"
	OutcomeStopped   = "stopped"
	OutcomeError     = "error"
)

// Cool-down bounds for requeued targets: min(base * 2^attempts, cap),
// jittered by ±25%.
const (
	DefaultCooldownBase = 30 * time.Second
	DefaultCooldownCap  = 5 * time.Minute
)

// maxConsecutiveFailures is how many transient page failures in a row a
// target absorbs before it is marked FAILED.
const maxConsecutiveFailures = 2

// TargetStore is the slice of the target table the runner needs.
type TargetStore interface {
	CheckpointPage(ctx context.Context, id int64, page int, writes func(tx *sqlx.Tx) error) error
	MarkDone(ctx context.Context, id int64, note *string) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
	Requeue(ctx context.Context, id int64, note string) error
}

// CompanyWriter merges accepted listings inside the checkpoint transaction.
type CompanyWriter interface {
	UpsertTx(ctx context.Context, tx *sqlx.Tx, params database.UpsertParams) (string, error)
}

// RejectWriter records refused listings inside the checkpoint transaction.
type RejectWriter interface {
	InsertTx(ctx context.Context, tx *sqlx.Tx, params database.RejectParams) error
}

// Journal mirrors page checkpoints and requeues to the worker's
// write-ahead log. Journal failures never fail the crawl.
type Journal interface {
	PageCheckpoint(targetID int64, page int) error
	TargetRequeued(targetID int64, detail string) error
}

// Mirror receives each accepted listing after its page checkpoint commits,
// for secondary search indexes. Best effort: mirror errors are logged and
// never fail the page.
type Mirror interface {
	IndexAccepted(ctx context.Context, target *domain.Target, listing *domain.Listing, outcome domain.FilterOutcome) error
}

// Deps wires the runner to its collaborators. Journal, Stats, and Mirror
// are optional; everything else is required.
type Deps struct {
	Targets   TargetStore
	Companies CompanyWriter
	Rejects   RejectWriter
	Source    directory.Source
	Fetcher   fetch.Fetcher
	Filter    *filter.Filter
	Monitor   *health.Monitor
	Logger    logger.Interface
	Journal   Journal
	Stats     *stats.Collector
	Mirror    Mirror
}

func (d Deps) validate() error {
	switch {
	case d.Targets == nil:
		return fmt.Errorf("crawl: target store is required")
	case d.Companies == nil:
		return fmt.Errorf("crawl: company writer is required")
	case d.Rejects == nil:
		return fmt.Errorf("crawl: reject writer is required")
	case d.Source == nil:
		return fmt.Errorf("crawl: directory source is required")
	case d.Fetcher == nil:
		return fmt.Errorf("crawl: fetcher is required")
	case d.Filter == nil:
		return fmt.Errorf("crawl: filter is required")
	case d.Monitor == nil:
		return fmt.Errorf("crawl: health monitor is required")
	case d.Logger == nil:
		return fmt.Errorf("crawl: logger is required")
	}
	return nil
}

// Config tunes one runner. Zero values take the package defaults.
type Config struct {
	// MaxPagesOverride, when > 0, replaces each target's page budget.
	MaxPagesOverride int
	// CooldownBase and CooldownCap bound the exponential cool-down
	// slept before a requeued target is released back to the pool.
	CooldownBase time.Duration
	CooldownCap  time.Duration
	// Seed fixes the cool-down jitter sequence; zero draws from the clock.
	Seed int64
}

// Runner crawls one claimed target at a time. It is not safe for
// concurrent use; each worker owns one.
type Runner struct {
	deps  Deps
	cfg   Config
	pacer *fetch.Pacer
	log   logger.Interface
}

// NewRunner validates the dependency set and prepares a runner.
func NewRunner(deps Deps, cfg Config) (*Runner, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.CooldownBase <= 0 {
		cfg.CooldownBase = DefaultCooldownBase
	}
	if cfg.CooldownCap <= 0 {
		cfg.CooldownCap = DefaultCooldownCap
	}
	return &Runner{
		deps:  deps,
		cfg:   cfg,
		pacer: fetch.NewPacer(cfg.Seed, 0),
		log:   deps.Logger.WithComponent("crawl"),
	}, nil
}

// Run walks the target from page_current+1 to its page budget and returns
// one of the Outcome constants. stop is polled between pages; a set stop
// requeues the target so a later run resumes from the last checkpoint. A
// non-nil error means a storage write failed and the target was left
// IN_PROGRESS for orphan recovery to reclaim.
func (r *Runner) Run(ctx context.Context, target *domain.Target, stop func() bool) (string, error) {
	log := r.log.WithTarget(target.ID)
	lastPage := r.pageBudget(target)
	failures := 0

	for page := target.NextPage(); page <= lastPage; page++ {
		if stop != nil && stop() {
			return r.requeueForShutdown(ctx, log, target)
		}

		pageURL := r.deps.Source.PageURL(target, page)
		res, err := r.deps.Fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeStopped, ctx.Err()
			}
			return OutcomeError, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}

		if res.Denied() {
			return r.requeueForCooldown(ctx, log, target, res)
		}

		var listings []*domain.Listing
		if res.OK() {
			listings, err = r.deps.Source.ParsePage(res.Body, pageURL)
		}
		if !res.OK() || err != nil {
			failures++
			outcome, failErr := r.softFailure(ctx, log, target, page, res, err, failures)
			if outcome != "" || failErr != nil {
				return outcome, failErr
			}
			continue
		}

		r.deps.Monitor.RecordSuccess()
		failures = 0

		accepted, checkpointErr := r.checkpointPage(ctx, target, page, listings)
		if checkpointErr != nil {
			return OutcomeError, checkpointErr
		}
		log.Info("page checkpointed",
			"page", page, "found", len(listings), "accepted", accepted)
		r.assessHealth(log)

		if page == 1 && accepted == 0 {
			return r.finishEarly(ctx, log, target)
		}
	}

	if err := r.deps.Targets.MarkDone(ctx, target.ID, nil); err != nil {
		return OutcomeError, fmt.Errorf("failed to mark target done: %w", err)
	}
	log.Info("target done", "pages", lastPage)
	return OutcomeDone, nil
}

// pageBudget applies the operator override to the target's own budget.
func (r *Runner) pageBudget(target *domain.Target) int {
	if r.cfg.MaxPagesOverride > 0 {
		return r.cfg.MaxPagesOverride
	}
	return target.PageTarget
}

// requeueForCooldown handles a captcha or block: the target goes back to
// PLANNED with its progress intact, and the worker sleeps the exponential
// cool-down before claiming again.
func (r *Runner) requeueForCooldown(
	ctx context.Context,
	log logger.Interface,
	target *domain.Target,
	res *domain.FetchResult,
) (string, error) {
	if res.Outcome == domain.FetchCaptcha {
		r.deps.Monitor.RecordCaptcha()
	} else {
		r.deps.Monitor.RecordBlocked()
	}

	if err := r.deps.Targets.Requeue(ctx, target.ID, domain.NoteCoolingDown); err != nil {
		return OutcomeError, fmt.Errorf("failed to requeue target: %w", err)
	}
	r.journalRequeue(log, target.ID, string(res.Outcome))

	wait := r.cooldown(target.Attempts)
	log.Warn("directory pushback, cooling down",
		"outcome", res.Outcome, "status", res.Status,
		"attempts", target.Attempts, "wait", wait)
	r.assessHealth(log)
	sleepOrCancel(ctx, wait)
	return OutcomeRequeued, nil
}

// softFailure absorbs one transient page failure. It returns ("", nil)
// when the crawl should move on to the next page.
func (r *Runner) softFailure(
	ctx context.Context,
	log logger.Interface,
	target *domain.Target,
	page int,
	res *domain.FetchResult,
	parseErr error,
	failures int,
) (string, error) {
	r.deps.Monitor.RecordFailure()

	reason := res.Reason
	if parseErr != nil {
		reason = parseErr.Error()
	}

	if failures >= maxConsecutiveFailures {
		lastError := fmt.Sprintf("page %d: %s", page, reason)
		if err := r.deps.Targets.MarkFailed(ctx, target.ID, lastError); err != nil {
			return OutcomeError, fmt.Errorf("failed to mark target failed: %w", err)
		}
		log.Error("target failed", "page", page, "reason", reason)
		return OutcomeFailed, nil
	}

	log.Warn("transient page failure, skipping page",
		"page", page, "status", res.Status, "reason", reason)
	sleepOrCancel(ctx, r.deps.Monitor.Delay())
	return "", nil
}

// finishEarly closes out a target whose first page accepted nothing.
func (r *Runner) finishEarly(
	ctx context.Context,
	log logger.Interface,
	target *domain.Target,
) (string, error) {
	note := domain.NoteEarlyExitNoResults
	if err := r.deps.Targets.MarkDone(ctx, target.ID, &note); err != nil {
		return OutcomeError, fmt.Errorf("failed to mark target done: %w", err)
	}
	log.Info("no accepted results on page 1, finishing early")
	return OutcomeDoneEarly, nil
}

// requeueForShutdown puts the target back in the queue when a graceful
// stop arrives between pages. Progress stays checkpointed.
func (r *Runner) requeueForShutdown(
	ctx context.Context,
	log logger.Interface,
	target *domain.Target,
) (string, error) {
	if err := r.deps.Targets.Requeue(ctx, target.ID, domain.NoteShutdownRequeued); err != nil {
		return OutcomeError, fmt.Errorf("failed to requeue target: %w", err)
	}
	r.journalRequeue(log, target.ID, "shutdown")
	log.Info("stop signal observed, target requeued", "page_current", target.PageCurrent)
	return OutcomeStopped, nil
}

// checkpointPage filters the page's listings and commits the upserts,
// rejects, and progress marker in one transaction. Stats are recorded
// only after the commit succeeds.
func (r *Runner) checkpointPage(
	ctx context.Context,
	target *domain.Target,
	page int,
	listings []*domain.Listing,
) (int, error) {
	type decision struct {
		listing *domain.Listing
		outcome domain.FilterOutcome
	}

	decisions := make([]decision, 0, len(listings))
	accepted := 0
	for _, listing := range listings {
		outcome := r.deps.Filter.Decide(listing)
		if outcome.Accepted {
			accepted++
		}
		decisions = append(decisions, decision{listing: listing, outcome: outcome})
	}

	upserts := make(map[string]int)
	err := r.deps.Targets.CheckpointPage(ctx, target.ID, page, func(tx *sqlx.Tx) error {
		for _, d := range decisions {
			if d.outcome.Accepted {
				result, upsertErr := r.deps.Companies.UpsertTx(ctx, tx, database.UpsertParams{
					Source:  r.deps.Source.Name(),
					Listing: d.listing,
					Outcome: d.outcome,
					Target:  target,
				})
				if upsertErr != nil {
					return upsertErr
				}
				upserts[result]++
				continue
			}
			if rejectErr := r.deps.Rejects.InsertTx(ctx, tx, database.RejectParams{
				TargetID: target.ID,
				Page:     page,
				Listing:  d.listing,
				Outcome:  d.outcome,
			}); rejectErr != nil {
				return rejectErr
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to checkpoint page %d: %w", page, err)
	}

	r.deps.Monitor.RecordPage(len(listings), accepted)
	if r.deps.Stats != nil {
		r.deps.Stats.RecordPage(len(listings), accepted)
		for result, n := range upserts {
			for range n {
				r.deps.Stats.RecordUpsert(result)
			}
		}
		for _, d := range decisions {
			if !d.outcome.Accepted {
				r.deps.Stats.RecordReject(d.outcome.Reason)
			}
		}
	}
	if r.deps.Journal != nil {
		if journalErr := r.deps.Journal.PageCheckpoint(target.ID, page); journalErr != nil {
			r.log.Warn("failed to journal page checkpoint", "error", journalErr.Error())
		}
	}
	if r.deps.Mirror != nil {
		for _, d := range decisions {
			if !d.outcome.Accepted {
				continue
			}
			if mirrorErr := r.deps.Mirror.IndexAccepted(ctx, target, d.listing, d.outcome); mirrorErr != nil {
				r.log.Warn("failed to mirror accepted listing", "error", mirrorErr.Error())
			}
		}
	}
	return accepted, nil
}

// cooldown computes min(base * 2^attempts, cap) with ±25% jitter.
func (r *Runner) cooldown(attempts int) time.Duration {
	wait := r.cfg.CooldownBase
	for range attempts {
		if wait >= r.cfg.CooldownCap {
			break
		}
		wait *= 2
	}
	if wait > r.cfg.CooldownCap {
		wait = r.cfg.CooldownCap
	}
	return r.pacer.Jitter(wait)
}

// assessHealth logs the monitor's verdict when it turns critical.
func (r *Runner) assessHealth(log logger.Interface) {
	assessment := r.deps.Monitor.Assess()
	if assessment.Level != health.LevelCritical {
		return
	}
	log.Error("worker health critical",
		"issues", assessment.Issues, "actions", assessment.Actions)
}

// journalRequeue best-effort mirrors a requeue to the write-ahead log.
func (r *Runner) journalRequeue(log logger.Interface, targetID int64, detail string) {
	if r.deps.Journal == nil {
		return
	}
	if err := r.deps.Journal.TargetRequeued(targetID, detail); err != nil {
		log.Warn("failed to journal requeue", "error", err.Error())
	}
}

func sleepOrCancel(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

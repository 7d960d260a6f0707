package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/goprospect/internal/domain"
)

// ErrNoTargetAvailable is returned when Claim finds no claimable target.
// Callers should check with errors.Is().
var ErrNoTargetAvailable = errors.New("no target available")

// ErrTargetNotFound is returned when an operation names a target id that
// does not exist.
var ErrTargetNotFound = errors.New("target not found")

// Target repository constants.
const (
	defaultTargetLimit = 50

	// targetSelectColumns lists columns for SELECT queries on targets (aliased as t).
	targetSelectColumns = `t.id, t.state, t.city, t.city_slug, t.category,
		t.primary_url, t.fallback_url, t.priority, t.page_target, t.status,
		t.claimed_by, t.claimed_at, t.heartbeat_at, t.page_current, t.attempts,
		t.last_error, t.note, t.finished_at, t.created_at, t.updated_at`
)

// TargetRepository handles database operations for crawl targets.
type TargetRepository struct {
	db *sqlx.DB
}

// NewTargetRepository creates a new target repository.
func NewTargetRepository(db *sqlx.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// InsertBatch inserts planned targets, skipping (state, city_slug, category)
// tuples that already exist. Returns the number of rows actually inserted,
// so seeding stays idempotent and re-runnable.
func (r *TargetRepository) InsertBatch(ctx context.Context, targets []*domain.Target) (int64, error) {
	if len(targets) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO targets (state, city, city_slug, category, primary_url, fallback_url, priority, page_target, status)
		VALUES (:state, :city, :city_slug, :category, :primary_url, :fallback_url, :priority, :page_target, 'PLANNED')
		ON CONFLICT (state, city_slug, category) DO NOTHING
	`

	result, err := r.db.NamedExecContext(ctx, query, targets)
	if err != nil {
		return 0, fmt.Errorf("failed to insert targets: %w", err)
	}

	inserted, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return 0, fmt.Errorf("failed to read inserted row count: %w", affectedErr)
	}

	return inserted, nil
}

// ClaimParams narrows what a worker may claim.
type ClaimParams struct {
	WorkerID    string
	States      []string // states this worker is sharded to; empty means any
	MaxPerState int      // open IN_PROGRESS targets allowed per state; 0 disables the cap
}

// Claim selects and locks one claimable target: PLANNED, inside the
// worker's state shard, in a state that still has claim slots free.
// Lower priority claims first; ties break randomly so workers spread
// across cities instead of marching through them in insert order.
// Returns ErrNoTargetAvailable when nothing qualifies.
func (r *TargetRepository) Claim(ctx context.Context, params ClaimParams) (*domain.Target, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	target, selectErr := claimSelect(ctx, tx, params)
	if selectErr != nil {
		return nil, selectErr
	}

	// SKIP LOCKED keeps two workers off the same row, but not off the same
	// state: both can pass the candidate filter while neither claim has
	// committed. Serialize same-state claims and recount before updating.
	if params.MaxPerState > 0 {
		if lockErr := lockStateClaims(ctx, tx, target.State); lockErr != nil {
			return nil, lockErr
		}

		open, countErr := countInProgress(ctx, tx, target.State)
		if countErr != nil {
			return nil, countErr
		}
		if open >= params.MaxPerState {
			return nil, ErrNoTargetAvailable
		}
	}

	if updateErr := claimUpdate(ctx, tx, target.ID, params.WorkerID); updateErr != nil {
		return nil, updateErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", commitErr)
	}

	now := time.Now()
	target.Status = domain.TargetStatusInProgress
	target.ClaimedBy = &params.WorkerID
	target.ClaimedAt = &now
	target.HeartbeatAt = &now
	target.Attempts++
	target.Note = nil
	return target, nil
}

// claimSelect selects and locks one claimable target within a transaction.
func claimSelect(ctx context.Context, tx *sqlx.Tx, params ClaimParams) (*domain.Target, error) {
	query := `
		SELECT ` + targetSelectColumns + `
		FROM targets t
		WHERE t.status = 'PLANNED'
		  AND (cardinality($1::text[]) = 0 OR t.state = ANY($1))
		  AND ($2 <= 0 OR (
			SELECT COUNT(*) FROM targets ip
			WHERE ip.state = t.state AND ip.status = 'IN_PROGRESS'
		  ) < $2)
		ORDER BY t.priority ASC, random()
		LIMIT 1
		FOR UPDATE OF t SKIP LOCKED
	`

	states := params.States
	if states == nil {
		states = []string{}
	}

	var target domain.Target
	err := tx.GetContext(ctx, &target, query, pq.Array(states), params.MaxPerState)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoTargetAvailable
		}
		return nil, fmt.Errorf("failed to select claimable target: %w", err)
	}

	return &target, nil
}

// lockStateClaims takes a transaction-scoped advisory lock keyed by state.
// Released automatically at commit or rollback.
func lockStateClaims(ctx context.Context, tx *sqlx.Tx, state string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, state); err != nil {
		return fmt.Errorf("failed to lock state claims: %w", err)
	}
	return nil
}

// countInProgress counts committed IN_PROGRESS targets for one state.
func countInProgress(ctx context.Context, tx *sqlx.Tx, state string) (int, error) {
	var open int
	err := tx.GetContext(ctx, &open,
		`SELECT COUNT(*) FROM targets WHERE state = $1 AND status = 'IN_PROGRESS'`, state)
	if err != nil {
		return 0, fmt.Errorf("failed to count open targets: %w", err)
	}
	return open, nil
}

// claimUpdate moves a selected target to IN_PROGRESS within a transaction.
// A requeue note from an earlier attempt is cleared; it described a
// condition that ended the moment someone claimed the target again.
func claimUpdate(ctx context.Context, tx *sqlx.Tx, id int64, workerID string) error {
	query := `
		UPDATE targets
		SET status = 'IN_PROGRESS',
			claimed_by = $1,
			claimed_at = NOW(),
			heartbeat_at = NOW(),
			attempts = attempts + 1,
			note = NULL,
			updated_at = NOW()
		WHERE id = $2
	`

	_, err := tx.ExecContext(ctx, query, workerID, id)
	if err != nil {
		return fmt.Errorf("failed to update claimed target: %w", err)
	}

	return nil
}

// CheckpointPage commits one page of work atomically: the caller's writes
// run in the same transaction that advances page_current and refreshes the
// heartbeat. Either the whole page lands or none of it does, so a crash
// between pages never leaves half a page persisted.
func (r *TargetRepository) CheckpointPage(ctx context.Context, id int64, page int, writes func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if writes != nil {
		if writeErr := writes(tx); writeErr != nil {
			return fmt.Errorf("failed to apply page writes: %w", writeErr)
		}
	}

	query := `
		UPDATE targets
		SET page_current = $1,
			heartbeat_at = NOW(),
			updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := tx.ExecContext(ctx, query, page, id)
	if requireErr := execRequireRows(result, execErr, fmt.Errorf("%w: %d", ErrTargetNotFound, id)); requireErr != nil {
		return requireErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit checkpoint transaction: %w", commitErr)
	}

	return nil
}

// MarkDone finishes a target and releases the claim. note is optional;
// the early-exit path records why a target finished under budget.
func (r *TargetRepository) MarkDone(ctx context.Context, id int64, note *string) error {
	query := `
		UPDATE targets
		SET status = 'DONE',
			note = COALESCE($1, note),
			claimed_by = NULL,
			claimed_at = NULL,
			finished_at = NOW(),
			updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, note, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %d", ErrTargetNotFound, id))
}

// MarkFailed gives up on a target and releases the claim. page_current is
// left alone so an operator reset resumes rather than restarts.
func (r *TargetRepository) MarkFailed(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE targets
		SET status = 'FAILED',
			last_error = $1,
			claimed_by = NULL,
			claimed_at = NULL,
			updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, lastError, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %d", ErrTargetNotFound, id))
}

// Requeue returns a claimed target to PLANNED with a note explaining why,
// preserving page_current so the next claim resumes where this one stopped.
func (r *TargetRepository) Requeue(ctx context.Context, id int64, note string) error {
	query := `
		UPDATE targets
		SET status = 'PLANNED',
			note = $1,
			claimed_by = NULL,
			claimed_at = NULL,
			updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, note, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %d", ErrTargetNotFound, id))
}

// Park shelves a target so no worker claims it until an operator resets it.
func (r *TargetRepository) Park(ctx context.Context, id int64, note string) error {
	query := `
		UPDATE targets
		SET status = 'PARKED',
			note = $1,
			claimed_by = NULL,
			claimed_at = NULL,
			updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, note, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %d", ErrTargetNotFound, id))
}

// RecoverOrphans returns dead workers' targets to the queue. A claim whose
// heartbeat has not moved for staleAfter has no live worker behind it,
// because checkpoints refresh the heartbeat on every page. Targets an
// operator flagged STUCK are swept up too. page_current survives, so the
// next claim resumes instead of restarting.
func (r *TargetRepository) RecoverOrphans(ctx context.Context, staleAfter time.Duration) (int64, error) {
	query := `
		UPDATE targets
		SET status = 'PLANNED',
			note = $1,
			claimed_by = NULL,
			claimed_at = NULL,
			updated_at = NOW()
		WHERE (status = 'IN_PROGRESS'
			AND (heartbeat_at IS NULL OR heartbeat_at < NOW() - ($2 * INTERVAL '1 second')))
		   OR status = 'STUCK'
	`

	result, err := r.db.ExecContext(ctx, query, domain.NoteOrphanRecovered, int64(staleAfter.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to recover orphaned targets: %w", err)
	}

	recovered, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return 0, fmt.Errorf("failed to read recovered row count: %w", affectedErr)
	}

	return recovered, nil
}

// ResetFailed re-queues FAILED targets for another run. maxAttempts > 0
// limits the reset to targets that still have attempts left; 0 resets all.
func (r *TargetRepository) ResetFailed(ctx context.Context, maxAttempts int) (int64, error) {
	query := `
		UPDATE targets
		SET status = 'PLANNED',
			note = $1,
			updated_at = NOW()
		WHERE status = 'FAILED'
		  AND ($2 <= 0 OR attempts < $2)
	`

	result, err := r.db.ExecContext(ctx, query, domain.NoteResetByOperator, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed targets: %w", err)
	}

	reset, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return 0, fmt.Errorf("failed to read reset row count: %w", affectedErr)
	}

	return reset, nil
}

// GetByID retrieves a target by ID.
func (r *TargetRepository) GetByID(ctx context.Context, id int64) (*domain.Target, error) {
	query := `SELECT ` + targetSelectColumns + ` FROM targets t WHERE t.id = $1`

	var target domain.Target
	if err := r.db.GetContext(ctx, &target, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrTargetNotFound, id)
		}
		return nil, fmt.Errorf("failed to get target: %w", err)
	}

	return &target, nil
}

// ListTargetsParams contains filters for listing targets.
type ListTargetsParams struct {
	Status string
	State  string
	Limit  int
	Offset int
}

// List retrieves targets matching the given filters.
func (r *TargetRepository) List(ctx context.Context, params ListTargetsParams) ([]*domain.Target, error) {
	where, args := buildTargetWhere(params)

	limit := params.Limit
	if limit <= 0 {
		limit = defaultTargetLimit
	}
	args = append(args, limit, params.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM targets t
		%s
		ORDER BY t.priority ASC, t.id ASC
		LIMIT $%d OFFSET $%d
	`, targetSelectColumns, where, len(args)-1, len(args))

	targets := []*domain.Target{}
	if err := r.db.SelectContext(ctx, &targets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	return targets, nil
}

// buildTargetWhere builds the WHERE clause for List queries.
func buildTargetWhere(params ListTargetsParams) (string, []any) {
	clauses := []string{}
	args := []any{}
	argIndex := 1

	if params.Status != "" {
		clauses = append(clauses, fmt.Sprintf("t.status = $%d", argIndex))
		args = append(args, params.Status)
		argIndex++
	}

	if params.State != "" {
		clauses = append(clauses, fmt.Sprintf("t.state = $%d", argIndex))
		args = append(args, params.State)
		argIndex++
	}

	if len(clauses) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

// StatusCounts returns target counts grouped by status.
func (r *TargetRepository) StatusCounts(ctx context.Context) (map[string]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM targets GROUP BY status`

	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count targets by status: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

package integration_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/tests/helpers"
)

func TestIntegration_ClaimLifecycle(t *testing.T) {
	db := postgresDB(t)
	ctx := context.Background()
	targets := database.NewTargetRepository(db)

	inserted, err := targets.InsertBatch(ctx, []*domain.Target{
		helpers.TestTarget("TX", "Austin", "plumbers", helpers.WithPageTarget(2)),
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, inserted)

	claimed, err := targets.Claim(ctx, database.ClaimParams{WorkerID: "worker-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.TargetStatusInProgress, claimed.Status)
	require.NotNil(t, claimed.ClaimedBy)
	assert.Equal(t, "worker-1", *claimed.ClaimedBy)
	assert.Equal(t, 1, claimed.Attempts)
	assert.Equal(t, 1, claimed.NextPage())

	// The only target is held, so a second worker comes up empty.
	_, err = targets.Claim(ctx, database.ClaimParams{WorkerID: "worker-2"})
	require.ErrorIs(t, err, database.ErrNoTargetAvailable)

	require.NoError(t, targets.CheckpointPage(ctx, claimed.ID, 1, nil))
	require.NoError(t, targets.CheckpointPage(ctx, claimed.ID, 2, nil))
	require.NoError(t, targets.MarkDone(ctx, claimed.ID, nil))

	done, err := targets.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TargetStatusDone, done.Status)
	assert.Equal(t, 2, done.PageCurrent)
	assert.Nil(t, done.ClaimedBy)
	assert.Nil(t, done.ClaimedAt)
	assert.NotNil(t, done.FinishedAt)
	assert.False(t, done.Remaining())
}

func TestIntegration_ClaimExclusivity(t *testing.T) {
	db := postgresDB(t)
	ctx := context.Background()
	targets := database.NewTargetRepository(db)

	const (
		targetCount = 20
		workerCount = 8
	)

	batch := make([]*domain.Target, 0, targetCount)
	for i := range targetCount {
		batch = append(batch, helpers.TestTarget("TX", fmt.Sprintf("Town %02d", i), "plumbers"))
	}
	inserted, err := targets.InsertBatch(ctx, batch)
	require.NoError(t, err)
	require.EqualValues(t, targetCount, inserted)

	var (
		mu   sync.Mutex
		seen = make(map[int64]string, targetCount)
	)

	var wg sync.WaitGroup
	for w := range workerCount {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			for {
				claimed, claimErr := targets.Claim(ctx, database.ClaimParams{WorkerID: workerID})
				if errors.Is(claimErr, database.ErrNoTargetAvailable) {
					return
				}
				if claimErr != nil {
					t.Errorf("claim failed for %s: %v", workerID, claimErr)
					return
				}

				mu.Lock()
				if prev, dup := seen[claimed.ID]; dup {
					t.Errorf("target %d claimed by %s and %s", claimed.ID, prev, workerID)
				}
				seen[claimed.ID] = workerID
				mu.Unlock()
			}
		}(fmt.Sprintf("worker-%d", w))
	}
	wg.Wait()

	assert.Len(t, seen, targetCount, "every target should be claimed exactly once")
}

func TestIntegration_PerStateCapHolds(t *testing.T) {
	db := postgresDB(t)
	ctx := context.Background()
	targets := database.NewTargetRepository(db)

	_, err := targets.InsertBatch(ctx, []*domain.Target{
		helpers.TestTarget("TX", "Austin", "plumbers"),
		helpers.TestTarget("TX", "Dallas", "plumbers"),
		helpers.TestTarget("OK", "Tulsa", "plumbers"),
	})
	require.NoError(t, err)

	first, err := targets.Claim(ctx, database.ClaimParams{
		WorkerID: "worker-1", States: []string{"TX"}, MaxPerState: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "TX", first.State)

	// TX is at its cap; the second TX claim must wait.
	_, err = targets.Claim(ctx, database.ClaimParams{
		WorkerID: "worker-2", States: []string{"TX"}, MaxPerState: 1,
	})
	require.ErrorIs(t, err, database.ErrNoTargetAvailable)

	// An unsharded worker still finds the open OK slot.
	other, err := targets.Claim(ctx, database.ClaimParams{WorkerID: "worker-2", MaxPerState: 1})
	require.NoError(t, err)
	assert.Equal(t, "OK", other.State)

	// Finishing the TX target frees its slot.
	require.NoError(t, targets.MarkDone(ctx, first.ID, nil))

	next, err := targets.Claim(ctx, database.ClaimParams{
		WorkerID: "worker-2", States: []string{"TX"}, MaxPerState: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "TX", next.State)
	assert.NotEqual(t, first.ID, next.ID)
}

func TestIntegration_OrphanRecoveryResumes(t *testing.T) {
	db := postgresDB(t)
	ctx := context.Background()
	targets := database.NewTargetRepository(db)

	_, err := targets.InsertBatch(ctx, []*domain.Target{
		helpers.TestTarget("TX", "Austin", "plumbers"),
	})
	require.NoError(t, err)

	claimed, err := targets.Claim(ctx, database.ClaimParams{WorkerID: "worker-1"})
	require.NoError(t, err)
	require.NoError(t, targets.CheckpointPage(ctx, claimed.ID, 1, nil))

	// A fresh heartbeat keeps the claim.
	recovered, err := targets.RecoverOrphans(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, recovered)

	// Age the heartbeat past the threshold, as if the worker died mid-run.
	_, err = db.ExecContext(ctx,
		`UPDATE targets SET heartbeat_at = NOW() - INTERVAL '1 hour' WHERE id = $1`, claimed.ID)
	require.NoError(t, err)

	recovered, err = targets.RecoverOrphans(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, recovered)

	orphan, err := targets.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TargetStatusPlanned, orphan.Status)
	require.NotNil(t, orphan.Note)
	assert.Equal(t, domain.NoteOrphanRecovered, *orphan.Note)
	assert.Nil(t, orphan.ClaimedBy)
	assert.Equal(t, 1, orphan.PageCurrent, "committed progress survives recovery")

	reclaimed, err := targets.Claim(ctx, database.ClaimParams{WorkerID: "worker-2"})
	require.NoError(t, err)
	assert.Equal(t, claimed.ID, reclaimed.ID)
	assert.Equal(t, 2, reclaimed.NextPage(), "next claim resumes after the last checkpoint")
	assert.Equal(t, 2, reclaimed.Attempts)
	assert.Nil(t, reclaimed.Note, "recovery note clears on the next claim")
}

func TestIntegration_RecoverSweepsStuckTargets(t *testing.T) {
	db := postgresDB(t)
	ctx := context.Background()
	targets := database.NewTargetRepository(db)

	_, err := targets.InsertBatch(ctx, []*domain.Target{
		helpers.TestTarget("TX", "Austin", "plumbers"),
	})
	require.NoError(t, err)

	claimed, err := targets.Claim(ctx, database.ClaimParams{WorkerID: "worker-1"})
	require.NoError(t, err)

	// An operator flags the target; heartbeat freshness is irrelevant.
	_, err = db.ExecContext(ctx, `UPDATE targets SET status = 'STUCK' WHERE id = $1`, claimed.ID)
	require.NoError(t, err)

	recovered, err := targets.RecoverOrphans(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, recovered)

	swept, err := targets.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TargetStatusPlanned, swept.Status)
}

func TestIntegration_SeedingIsIdempotent(t *testing.T) {
	db := postgresDB(t)
	ctx := context.Background()
	targets := database.NewTargetRepository(db)

	batch := []*domain.Target{
		helpers.TestTarget("TX", "Austin", "plumbers"),
		helpers.TestTarget("TX", "Austin", "electricians"),
	}

	inserted, err := targets.InsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.EqualValues(t, 2, inserted)

	// Re-seeding the same registry plus one new tuple only adds the new one.
	batch = append(batch, helpers.TestTarget("OK", "Tulsa", "plumbers"))
	inserted, err = targets.InsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.EqualValues(t, 1, inserted)

	counts, err := targets.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.TargetStatusPlanned])
}

func TestIntegration_ResetFailedRequeues(t *testing.T) {
	db := postgresDB(t)
	ctx := context.Background()
	targets := database.NewTargetRepository(db)

	_, err := targets.InsertBatch(ctx, []*domain.Target{
		helpers.TestTarget("TX", "Austin", "plumbers"),
	})
	require.NoError(t, err)

	claimed, err := targets.Claim(ctx, database.ClaimParams{WorkerID: "worker-1"})
	require.NoError(t, err)
	require.NoError(t, targets.CheckpointPage(ctx, claimed.ID, 1, nil))
	require.NoError(t, targets.MarkFailed(ctx, claimed.ID, "proxy pool exhausted"))

	reset, err := targets.ResetFailed(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)

	requeued, err := targets.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TargetStatusPlanned, requeued.Status)
	require.NotNil(t, requeued.Note)
	assert.Equal(t, domain.NoteResetByOperator, *requeued.Note)
	require.NotNil(t, requeued.LastError)
	assert.Equal(t, "proxy pool exhausted", *requeued.LastError)
	assert.Equal(t, 1, requeued.PageCurrent, "a reset resumes rather than restarts")
}

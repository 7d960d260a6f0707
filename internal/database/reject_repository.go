package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goprospect/internal/domain"
)

// RejectRepository records listings the filter refused. The rows exist for
// tuning: a reason that rejects half a category usually means a list file
// needs editing, and the full listing payload shows what was lost.
type RejectRepository struct {
	db *sqlx.DB
}

// NewRejectRepository creates a new reject repository.
func NewRejectRepository(db *sqlx.DB) *RejectRepository {
	return &RejectRepository{db: db}
}

// RejectParams carries one refused listing and where it came from.
type RejectParams struct {
	TargetID int64
	Page     int
	Listing  *domain.Listing
	Outcome  domain.FilterOutcome
}

// InsertTx appends one reject row using the caller's transaction, so
// rejects land in the same page checkpoint as the upserts beside them.
func (r *RejectRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, params RejectParams) error {
	payload, err := json.Marshal(params.Listing)
	if err != nil {
		return fmt.Errorf("failed to encode rejected listing: %w", err)
	}

	query := `
		INSERT INTO reject_log (target_id, page, name, website, reason, score, listing)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, execErr := tx.ExecContext(ctx, query,
		params.TargetID, params.Page, params.Listing.Name, params.Listing.Website,
		params.Outcome.Reason, params.Outcome.Score, payload,
	)
	if execErr != nil {
		return fmt.Errorf("failed to insert reject row: %w", execErr)
	}

	return nil
}

// CountByReason returns reject counts grouped by reason.
func (r *RejectRepository) CountByReason(ctx context.Context) (map[string]int, error) {
	query := `SELECT reason, COUNT(*) AS count FROM reject_log GROUP BY reason`

	rows := []struct {
		Reason string `db:"reason"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count rejects by reason: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Reason] = row.Count
	}

	return counts, nil
}

package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goprospect/internal/domain"
)

// TargetStore defines the contract for target data access.
type TargetStore interface {
	// Seeding
	InsertBatch(ctx context.Context, targets []*domain.Target) (int64, error)

	// Worker lifecycle
	Claim(ctx context.Context, params ClaimParams) (*domain.Target, error)
	CheckpointPage(ctx context.Context, id int64, page int, writes func(tx *sqlx.Tx) error) error
	MarkDone(ctx context.Context, id int64, note *string) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
	Requeue(ctx context.Context, id int64, note string) error

	// Recovery and operator control
	RecoverOrphans(ctx context.Context, staleAfter time.Duration) (int64, error)
	ResetFailed(ctx context.Context, maxAttempts int) (int64, error)
	Park(ctx context.Context, id int64, note string) error

	// Queries
	GetByID(ctx context.Context, id int64) (*domain.Target, error)
	List(ctx context.Context, params ListTargetsParams) ([]*domain.Target, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
}

// CompanyStore defines the contract for company data access.
type CompanyStore interface {
	Upsert(ctx context.Context, params UpsertParams) (string, error)
	UpsertTx(ctx context.Context, tx *sqlx.Tx, params UpsertParams) (string, error)
	GetByWebsite(ctx context.Context, website string) (*domain.Company, error)
	List(ctx context.Context, params ListCompaniesParams) ([]*domain.Company, error)
	Count(ctx context.Context) (int64, error)
}

// RejectStore defines the contract for reject log access.
type RejectStore interface {
	InsertTx(ctx context.Context, tx *sqlx.Tx, params RejectParams) error
	CountByReason(ctx context.Context) (map[string]int, error)
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goprospect/internal/canonical"
	"github.com/jonesrussell/goprospect/internal/domain"
)

// Upsert outcomes.
const (
	UpsertInserted = "inserted"
	UpsertUpdated  = "updated"
	UpsertSkipped  = "skipped"
)

// ErrCompanyNotFound is returned when a lookup names a company that does
// not exist.
var ErrCompanyNotFound = errors.New("company not found")

// companySelectColumns lists columns for SELECT queries on companies (aliased as c).
const companySelectColumns = `c.id, c.name, c.website_canonical, c.domain, c.phone_e164,
	c.address, c.city, c.state, c.rating, c.review_count,
	c.source, c.source_first_seen, c.last_seen, c.parse_metadata`

// CompanyRepository handles database operations for deduplicated companies.
type CompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository creates a new company repository.
func NewCompanyRepository(db *sqlx.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// UpsertParams carries one accepted listing and its provenance.
type UpsertParams struct {
	Source  string
	Listing *domain.Listing
	Outcome domain.FilterOutcome
	Target  *domain.Target
}

// Upsert merges one accepted listing into the companies table inside its
// own transaction. See UpsertTx for the merge rules.
func (r *CompanyRepository) Upsert(ctx context.Context, params UpsertParams) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result, upsertErr := r.UpsertTx(ctx, tx, params)
	if upsertErr != nil {
		return "", upsertErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return "", fmt.Errorf("failed to commit upsert transaction: %w", commitErr)
	}

	return result, nil
}

// UpsertTx merges one accepted listing into the companies table using the
// caller's transaction, so page checkpoints can carry their upserts. The
// canonical website URL is the row identity: first sighting inserts,
// every later sighting merges, whichever city or category it surfaced in.
// A listing whose website cannot be canonicalized is skipped.
//
// Merge rules for an existing row: empty scalars fill in from the new
// sighting, rating and review count take the newer value when present,
// the name never changes once set, last_seen always advances, and
// parse_metadata merges with newer scalars winning and arrays unioned
// in order.
func (r *CompanyRepository) UpsertTx(ctx context.Context, tx *sqlx.Tx, params UpsertParams) (string, error) {
	website, canonErr := canonical.CanonicalizeURL(params.Listing.WebsiteOrEmpty())
	if canonErr != nil || website == "" {
		return UpsertSkipped, nil
	}

	existing, selectErr := selectCompanyForUpdate(ctx, tx, website)
	if selectErr != nil {
		return "", selectErr
	}

	if existing == nil {
		inserted, insertErr := insertCompany(ctx, tx, website, params)
		if insertErr != nil {
			return "", insertErr
		}
		if inserted {
			return UpsertInserted, nil
		}

		// Lost an insert race against a concurrent transaction. ON CONFLICT
		// waited for that transaction to commit, so the row is visible now.
		existing, selectErr = selectCompanyForUpdate(ctx, tx, website)
		if selectErr != nil {
			return "", selectErr
		}
		if existing == nil {
			return "", fmt.Errorf("company missing after insert conflict: %s", website)
		}
	}

	if updateErr := updateCompany(ctx, tx, mergeCompany(existing, params)); updateErr != nil {
		return "", updateErr
	}

	return UpsertUpdated, nil
}

// selectCompanyForUpdate locks the row for a canonical website, if one
// exists. Returns nil without error when the website is unseen.
func selectCompanyForUpdate(ctx context.Context, tx *sqlx.Tx, website string) (*domain.Company, error) {
	query := `
		SELECT ` + companySelectColumns + `
		FROM companies c
		WHERE c.website_canonical = $1
		FOR UPDATE
	`

	var company domain.Company
	err := tx.GetContext(ctx, &company, query, website)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select company for update: %w", err)
	}

	return &company, nil
}

// insertCompany inserts a first sighting. Reports false when a concurrent
// transaction inserted the same website first.
func insertCompany(ctx context.Context, tx *sqlx.Tx, website string, params UpsertParams) (bool, error) {
	fresh := newCompany(website, params)

	query := `
		INSERT INTO companies (name, website_canonical, domain, phone_e164, address, city, state,
			rating, review_count, source, source_first_seen, last_seen, parse_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), $11)
		ON CONFLICT (website_canonical) DO NOTHING
	`

	result, err := tx.ExecContext(ctx, query,
		fresh.Name, fresh.WebsiteCanonical, fresh.Domain, fresh.PhoneE164,
		fresh.Address, fresh.City, fresh.State, fresh.Rating, fresh.ReviewCount,
		fresh.Source, fresh.ParseMetadata,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert company: %w", err)
	}

	inserted, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return false, fmt.Errorf("failed to read inserted row count: %w", affectedErr)
	}

	return inserted == 1, nil
}

// updateCompany writes a merged row back.
func updateCompany(ctx context.Context, tx *sqlx.Tx, merged *domain.Company) error {
	query := `
		UPDATE companies
		SET name = $1,
			domain = $2,
			phone_e164 = $3,
			address = $4,
			city = $5,
			state = $6,
			rating = $7,
			review_count = $8,
			last_seen = NOW(),
			parse_metadata = $9
		WHERE id = $10
	`

	result, execErr := tx.ExecContext(ctx, query,
		merged.Name, merged.Domain, merged.PhoneE164, merged.Address,
		merged.City, merged.State, merged.Rating, merged.ReviewCount,
		merged.ParseMetadata, merged.ID,
	)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %d", ErrCompanyNotFound, merged.ID))
}

// newCompany builds the row for a first sighting.
func newCompany(website string, params UpsertParams) *domain.Company {
	listing := params.Listing
	target := params.Target

	company := &domain.Company{
		Name:             displayName(listing.Name),
		WebsiteCanonical: website,
		Domain:           websiteDomain(website),
		PhoneE164:        normalizedPhone(listing.Phone),
		Address:          listing.Address,
		Rating:           listing.Rating,
		ReviewCount:      listing.Reviews,
		Source:           params.Source,
		ParseMetadata:    domain.BuildParseMetadata(listing, params.Outcome),
	}
	if company.Source == "" {
		company.Source = domain.DefaultSource
	}
	if target != nil {
		city := target.City
		state := target.State
		company.City = &city
		company.State = &state
	}

	return company
}

// mergeCompany applies the merge rules to an existing row and a new
// sighting. The existing row is not mutated.
func mergeCompany(existing *domain.Company, params UpsertParams) *domain.Company {
	merged := *existing
	listing := params.Listing

	if merged.Name == "" {
		merged.Name = displayName(listing.Name)
	}
	if merged.Domain == nil {
		merged.Domain = websiteDomain(merged.WebsiteCanonical)
	}
	if merged.PhoneE164 == nil {
		merged.PhoneE164 = normalizedPhone(listing.Phone)
	}
	if merged.Address == nil && listing.Address != nil {
		merged.Address = listing.Address
	}
	if merged.City == nil && params.Target != nil {
		city := params.Target.City
		merged.City = &city
	}
	if merged.State == nil && params.Target != nil {
		state := params.Target.State
		merged.State = &state
	}

	// A fresh sighting is stronger evidence than a stale one.
	if listing.Rating != nil {
		merged.Rating = listing.Rating
	}
	if listing.Reviews != nil {
		merged.ReviewCount = listing.Reviews
	}

	merged.LastSeen = time.Now()
	merged.ParseMetadata = existing.ParseMetadata.Merge(domain.BuildParseMetadata(listing, params.Outcome))

	return &merged
}

// displayName returns the cleaned business name, or the raw one when
// cleaning rejects it. The filter already vetted the name; this only
// tidies whitespace for display.
func displayName(raw string) string {
	cleaned, err := canonical.CleanName(raw)
	if err != nil {
		return raw
	}
	return cleaned
}

// normalizedPhone converts a raw phone to E.164-ish NANP form, or nil
// when the string is not a usable number.
func normalizedPhone(raw *string) *string {
	if raw == nil {
		return nil
	}
	normalized, err := canonical.NormalizePhone(*raw)
	if err != nil {
		return nil
	}
	return &normalized
}

// websiteDomain extracts the registrable domain, or nil when the URL
// resists parsing.
func websiteDomain(website string) *string {
	domainName, err := canonical.ExtractDomain(website)
	if err != nil || domainName == "" {
		return nil
	}
	return &domainName
}

// GetByWebsite retrieves a company by its canonical website URL.
func (r *CompanyRepository) GetByWebsite(ctx context.Context, website string) (*domain.Company, error) {
	query := `SELECT ` + companySelectColumns + ` FROM companies c WHERE c.website_canonical = $1`

	var company domain.Company
	if err := r.db.GetContext(ctx, &company, query, website); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, website)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}

// ListCompaniesParams contains filters for listing companies.
type ListCompaniesParams struct {
	State  string
	City   string
	Limit  int
	Offset int
}

// List retrieves companies matching the given filters, newest sightings first.
func (r *CompanyRepository) List(ctx context.Context, params ListCompaniesParams) ([]*domain.Company, error) {
	where, args := buildCompanyWhere(params)

	limit := params.Limit
	if limit <= 0 {
		limit = defaultTargetLimit
	}
	args = append(args, limit, params.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM companies c
		%s
		ORDER BY c.last_seen DESC, c.id DESC
		LIMIT $%d OFFSET $%d
	`, companySelectColumns, where, len(args)-1, len(args))

	companies := []*domain.Company{}
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	return companies, nil
}

// buildCompanyWhere builds the WHERE clause for List queries.
func buildCompanyWhere(params ListCompaniesParams) (string, []any) {
	clauses := []string{}
	args := []any{}
	argIndex := 1

	if params.State != "" {
		clauses = append(clauses, fmt.Sprintf("c.state = $%d", argIndex))
		args = append(args, params.State)
		argIndex++
	}

	if params.City != "" {
		clauses = append(clauses, fmt.Sprintf("c.city = $%d", argIndex))
		args = append(args, params.City)
		argIndex++
	}

	if len(clauses) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

// Count returns the total number of companies.
func (r *CompanyRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM companies`); err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return total, nil
}

package database_test

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/domain"
)

// companyColumns lists the columns returned by company SELECT queries.
var companyColumns = []string{
	"id", "name", "website_canonical", "domain", "phone_e164",
	"address", "city", "state", "rating", "review_count",
	"source", "source_first_seen", "last_seen", "parse_metadata",
}

func newCompanyRepo(t *testing.T) (*database.CompanyRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewCompanyRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func acceptedListing() *domain.Listing {
	return &domain.Listing{
		Name:          "Joe's Plumbing LLC",
		Phone:         strPtr("(512) 555-0147"),
		Address:       strPtr("123 Main St"),
		Website:       strPtr("https://joesplumbing.com/?utm_source=yp"),
		CategoryTags:  []string{"Plumbers"},
		Rating:        floatPtr(4.5),
		Reviews:       intPtr(12),
		SourcePageURL: "https://www.yellowpages.com/austin-tx/plumbers",
	}
}

func austinTarget() *domain.Target {
	return &domain.Target{
		ID:       42,
		State:    "TX",
		City:     "Austin",
		CitySlug: "austin-tx",
		Category: "plumbers",
	}
}

func acceptedOutcome() domain.FilterOutcome {
	return domain.FilterOutcome{Accepted: true, Reason: domain.ReasonAccepted, Score: 2}
}

func TestCompanyRepository_Upsert_InsertsFirstSighting(t *testing.T) {
	repo, mock, cleanup := newCompanyRepo(t)
	defer cleanup()

	listing := acceptedListing()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM companies c").
		WithArgs("https://joesplumbing.com").
		WillReturnRows(sqlmock.NewRows(companyColumns))
	mock.ExpectExec("INSERT INTO companies").
		WithArgs(
			"Joe's Plumbing LLC",
			"https://joesplumbing.com",
			"joesplumbing.com",
			"+1-512-555-0147",
			"123 Main St",
			"Austin",
			"TX",
			4.5,
			12,
			domain.DefaultSource,
			domain.BuildParseMetadata(listing, acceptedOutcome()),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := repo.Upsert(context.Background(), database.UpsertParams{
		Source:  domain.DefaultSource,
		Listing: listing,
		Outcome: acceptedOutcome(),
		Target:  austinTarget(),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if result != database.UpsertInserted {
		t.Errorf("result = %q, want %q", result, database.UpsertInserted)
	}

	expectationsMet(t, mock)
}

func TestCompanyRepository_Upsert_MergesExistingRow(t *testing.T) {
	repo, mock, cleanup := newCompanyRepo(t)
	defer cleanup()

	now := time.Now()
	existing := []driver.Value{
		int64(7), "Joe's Plumbing", "https://joesplumbing.com", nil, nil,
		nil, nil, nil, 4.2, 8,
		domain.DefaultSource, now.Add(-48 * time.Hour), now.Add(-48 * time.Hour),
		[]byte(`{"category_tags":["plumbers"],"source_page_url":"https://www.yellowpages.com/austin-tx/plumbers"}`),
	}

	listing := acceptedListing()
	listing.Rating = floatPtr(4.8)
	listing.Reviews = intPtr(21)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM companies c").
		WithArgs("https://joesplumbing.com").
		WillReturnRows(sqlmock.NewRows(companyColumns).AddRow(existing...))
	// The merge fills the gaps (domain, phone, address, city, state),
	// keeps the established name, and takes the fresher rating and
	// review count. Metadata merging is covered by the merge rule tests.
	mock.ExpectExec("UPDATE companies").
		WithArgs(
			"Joe's Plumbing",
			"joesplumbing.com",
			"+1-512-555-0147",
			"123 Main St",
			"Austin",
			"TX",
			4.8,
			21,
			sqlmock.AnyArg(),
			int64(7),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Upsert(context.Background(), database.UpsertParams{
		Source:  domain.DefaultSource,
		Listing: listing,
		Outcome: acceptedOutcome(),
		Target:  austinTarget(),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if result != database.UpsertUpdated {
		t.Errorf("result = %q, want %q", result, database.UpsertUpdated)
	}

	expectationsMet(t, mock)
}

func TestCompanyRepository_Upsert_SkipsListingWithoutWebsite(t *testing.T) {
	repo, mock, cleanup := newCompanyRepo(t)
	defer cleanup()

	listing := acceptedListing()
	listing.Website = nil

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := repo.Upsert(context.Background(), database.UpsertParams{
		Source:  domain.DefaultSource,
		Listing: listing,
		Outcome: acceptedOutcome(),
		Target:  austinTarget(),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if result != database.UpsertSkipped {
		t.Errorf("result = %q, want %q", result, database.UpsertSkipped)
	}

	expectationsMet(t, mock)
}

func TestCompanyRepository_Upsert_LostInsertRaceFallsBackToMerge(t *testing.T) {
	repo, mock, cleanup := newCompanyRepo(t)
	defer cleanup()

	now := time.Now()
	existing := []driver.Value{
		int64(7), "Joe's Plumbing LLC", "https://joesplumbing.com", nil, nil,
		nil, nil, nil, nil, nil,
		domain.DefaultSource, now, now,
		[]byte(`{}`),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM companies c").
		WithArgs("https://joesplumbing.com").
		WillReturnRows(sqlmock.NewRows(companyColumns))
	mock.ExpectExec("INSERT INTO companies").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM companies c").
		WithArgs("https://joesplumbing.com").
		WillReturnRows(sqlmock.NewRows(companyColumns).AddRow(existing...))
	mock.ExpectExec("UPDATE companies").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Upsert(context.Background(), database.UpsertParams{
		Source:  domain.DefaultSource,
		Listing: acceptedListing(),
		Outcome: acceptedOutcome(),
		Target:  austinTarget(),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if result != database.UpsertUpdated {
		t.Errorf("result = %q, want %q", result, database.UpsertUpdated)
	}

	expectationsMet(t, mock)
}

func TestCompanyRepository_Count(t *testing.T) {
	repo, mock, cleanup := newCompanyRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(314))

	total, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 314 {
		t.Errorf("total = %d, want 314", total)
	}

	expectationsMet(t, mock)
}

func TestCompanyRepository_List_FiltersByState(t *testing.T) {
	repo, mock, cleanup := newCompanyRepo(t)
	defer cleanup()

	now := time.Now()
	row := []driver.Value{
		int64(1), "Joe's Plumbing LLC", "https://joesplumbing.com", "joesplumbing.com", nil,
		nil, "Austin", "TX", nil, nil,
		domain.DefaultSource, now, now, []byte(`{}`),
	}

	mock.ExpectQuery("SELECT (.+) FROM companies c").
		WithArgs("TX", 25, 0).
		WillReturnRows(sqlmock.NewRows(companyColumns).AddRow(row...))

	companies, err := repo.List(context.Background(), database.ListCompaniesParams{State: "TX", Limit: 25})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(companies) != 1 {
		t.Fatalf("len(companies) = %d, want 1", len(companies))
	}
	if companies[0].WebsiteCanonical != "https://joesplumbing.com" {
		t.Errorf("WebsiteCanonical = %q", companies[0].WebsiteCanonical)
	}

	expectationsMet(t, mock)
}

// Package helpers provides container-backed fixtures for integration tests.
package helpers

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	dbschema "github.com/jonesrussell/goprospect/db"
	databaseconfig "github.com/jonesrussell/goprospect/internal/config/database"
	"github.com/jonesrussell/goprospect/internal/database"
)

const (
	// DefaultPostgresImage is the image integration tests run against.
	DefaultPostgresImage = "postgres:16-alpine"
	// DefaultPostgresStartupTimeout is the default timeout for Postgres to start.
	DefaultPostgresStartupTimeout = 60 * time.Second

	testDBName     = "prospect_test"
	testDBUser     = "prospect"
	testDBPassword = "prospect"
)

// PostgresContainer manages a test Postgres instance with the crawl
// schema already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	Config    *databaseconfig.Config
}

// StartPostgres starts a Postgres container for testing and applies the
// schema. It returns a container instance that should be stopped with Stop().
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	pgContainer, err := postgres.Run(
		ctx,
		DefaultPostgresImage,
		postgres.WithDatabase(testDBName),
		postgres.WithUsername(testDBUser),
		postgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(DefaultPostgresStartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start Postgres container: %w", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mappedPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := &databaseconfig.Config{
		Host:     host,
		Port:     mappedPort.Port(),
		User:     testDBUser,
		Password: testDBPassword,
		DBName:   testDBName,
		SSLMode:  "disable",
	}

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to Postgres container: %w", err)
	}
	defer db.Close()

	if _, execErr := db.ExecContext(ctx, dbschema.Schema); execErr != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to apply schema: %w", execErr)
	}

	return &PostgresContainer{
		Container: pgContainer,
		Config:    cfg,
	}, nil
}

// Connect opens a fresh connection pool against the container.
func (p *PostgresContainer) Connect() (*sqlx.DB, error) {
	return database.NewPostgresConnection(p.Config)
}

// Truncate clears the crawl tables so tests start from an empty store.
func (p *PostgresContainer) Truncate(ctx context.Context, db *sqlx.DB) error {
	query := `TRUNCATE TABLE reject_log, companies, targets RESTART IDENTITY CASCADE`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

// Stop stops and removes the Postgres container.
func (p *PostgresContainer) Stop(ctx context.Context) error {
	if p.Container == nil {
		return nil
	}
	return p.Container.Terminate(ctx)
}

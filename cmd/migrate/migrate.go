// Package migrate implements the migrate command that applies the
// embedded schema.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/goprospect/cmd/common"
	dbschema "github.com/jonesrussell/goprospect/db"
	"github.com/jonesrussell/goprospect/internal/database"
)

// Command returns the migrate command for use in the root command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `This command applies the embedded schema to the configured database.
Every statement is idempotent, so migrate is safe to re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			db, err := database.NewPostgresConnection(deps.Config.GetDatabaseConfig())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if _, err := db.ExecContext(cmd.Context(), dbschema.Schema); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}

			deps.Logger.Info("Schema applied",
				"database", deps.Config.GetDatabaseConfig().DBName,
			)
			return nil
		},
	}
}

// Package seed implements the seed command that plans crawl targets
// from the city/category registry.
package seed

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/goprospect/cmd/common"
	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/directory"
	"github.com/jonesrussell/goprospect/internal/parser"
	"github.com/jonesrussell/goprospect/internal/seeding"
)

// Command returns the seed command for use in the root command.
func Command() *cobra.Command {
	var registryPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Plan crawl targets from the registry",
		Long: `This command expands the city/category registry into PLANNED targets,
one per (state, city, category) tuple. Seeding is idempotent: tuples
that already exist are left untouched, so it is safe to re-run after
editing the registry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			if registryPath == "" {
				registryPath = viper.GetString("seed.registry_path")
			}

			registry, err := seeding.LoadRegistry(registryPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}

			db, err := database.NewPostgresConnection(deps.Config.GetDatabaseConfig())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			source := directory.NewYellowPages(parser.Options{})
			seeder := seeding.NewSeeder(database.NewTargetRepository(db), source, deps.Logger)

			result, err := seeder.Seed(cmd.Context(), registry)
			if err != nil {
				return fmt.Errorf("failed to seed targets: %w", err)
			}

			deps.Logger.Info("Seeding complete",
				"registry", registryPath,
				"planned", result.Planned,
				"inserted", result.Inserted,
				"skipped", result.Skipped,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&registryPath, "registry", "",
		"Path to the registry file (default from config: seed.registry_path)")

	return cmd
}

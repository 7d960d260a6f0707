// Package recover implements the recover command that sweeps orphaned
// claims back into the queue.
package recover

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/goprospect/cmd/common"
	"github.com/jonesrussell/goprospect/internal/database"
)

// Command returns the recover command for use in the root command.
func Command() *cobra.Command {
	var resetFailed bool

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Return orphaned and stuck targets to the queue",
		Long: `This command re-queues IN_PROGRESS targets whose worker heartbeat went
stale (a crashed or killed worker) along with targets an operator
flagged STUCK. Progress survives: a recovered target resumes from its
last committed page.

With --reset-failed, targets that exhausted their retry budget are also
returned to PLANNED for another run.`,
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

			targets := database.NewTargetRepository(db)
			poolCfg := deps.Config.GetPoolConfig()

			recovered, err := targets.RecoverOrphans(cmd.Context(), poolCfg.OrphanTimeout)
			if err != nil {
				return fmt.Errorf("failed to recover orphans: %w", err)
			}
			deps.Logger.Info("Orphan recovery complete",
				"recovered", recovered,
				"stale_after", poolCfg.OrphanTimeout.String(),
			)

			if resetFailed {
				reset, resetErr := targets.ResetFailed(cmd.Context(), 0)
				if resetErr != nil {
					return fmt.Errorf("failed to reset failed targets: %w", resetErr)
				}
				deps.Logger.Info("Failed targets reset", "reset", reset)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&resetFailed, "reset-failed", false,
		"Also return FAILED targets to PLANNED")

	return cmd
}

// Package status implements the status command that reports queue and
// store health in formatted tables.
package status

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/goprospect/cmd/common"
	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/domain"
)

const recentFailureLimit = 10

// statusOrder fixes the row order of the count table.
var statusOrder = []string{
	domain.TargetStatusPlanned,
	domain.TargetStatusInProgress,
	domain.TargetStatusDone,
	domain.TargetStatusFailed,
	domain.TargetStatusStuck,
	domain.TargetStatusParked,
}

// Command returns the status command for use in the root command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue and store status",
		Long: `This command prints target counts by status, the targets currently
being crawled, recent failures, and the size of the canonical store.`,
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

			reporter := &Reporter{
				targets:   database.NewTargetRepository(db),
				companies: database.NewCompanyRepository(db),
				rejects:   database.NewRejectRepository(db),
			}
			return reporter.Render(cmd.Context())
		},
	}
}

// Reporter assembles and renders the status tables.
type Reporter struct {
	targets   *database.TargetRepository
	companies *database.CompanyRepository
	rejects   *database.RejectRepository
}

// Render prints all status sections to stdout.
func (r *Reporter) Render(ctx context.Context) error {
	if err := r.renderCounts(ctx); err != nil {
		return err
	}
	if err := r.renderInProgress(ctx); err != nil {
		return err
	}
	if err := r.renderFailures(ctx); err != nil {
		return err
	}
	return r.renderStore(ctx)
}

func (r *Reporter) renderCounts(ctx context.Context) error {
	counts, err := r.targets.StatusCounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count targets: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Targets")
	t.AppendHeader(table.Row{"Status", "Count"})

	total := 0
	for _, status := range statusOrder {
		t.AppendRow(table.Row{status, counts[status]})
		total += counts[status]
	}
	t.AppendFooter(table.Row{"TOTAL", total})
	t.Render()
	return nil
}

func (r *Reporter) renderInProgress(ctx context.Context) error {
	targets, err := r.targets.List(ctx, database.ListTargetsParams{
		Status: domain.TargetStatusInProgress,
	})
	if err != nil {
		return fmt.Errorf("failed to list in-progress targets: %w", err)
	}
	if len(targets) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("In progress")
	t.AppendHeader(table.Row{"ID", "State", "City", "Category", "Page", "Worker", "Heartbeat"})

	for _, target := range targets {
		t.AppendRow(table.Row{
			target.ID,
			target.State,
			target.City,
			target.Category,
			fmt.Sprintf("%d/%d", target.PageCurrent, target.PageTarget),
			stringOrDash(target.ClaimedBy),
			heartbeatAge(target.HeartbeatAt),
		})
	}
	t.Render()
	return nil
}

func (r *Reporter) renderFailures(ctx context.Context) error {
	targets, err := r.targets.List(ctx, database.ListTargetsParams{
		Status: domain.TargetStatusFailed,
		Limit:  recentFailureLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list failed targets: %w", err)
	}
	if len(targets) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Recent failures")
	t.AppendHeader(table.Row{"ID", "State", "City", "Category", "Attempts", "Last error"})

	for _, target := range targets {
		t.AppendRow(table.Row{
			target.ID,
			target.State,
			target.City,
			target.Category,
			target.Attempts,
			stringOrDash(target.LastError),
		})
	}
	t.Render()
	return nil
}

func (r *Reporter) renderStore(ctx context.Context) error {
	count, err := r.companies.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count companies: %w", err)
	}
	reasons, err := r.rejects.CountByReason(ctx)
	if err != nil {
		return fmt.Errorf("failed to count rejects: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Store")
	t.AppendHeader(table.Row{"Metric", "Count"})
	t.AppendRow(table.Row{"companies", count})
	for reason, n := range reasons {
		t.AppendRow(table.Row{"rejected: " + reason, n})
	}
	t.Render()
	return nil
}

func stringOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func heartbeatAge(at *time.Time) string {
	if at == nil {
		return "-"
	}
	return time.Since(*at).Round(time.Second).String() + " ago"
}

// Package crawl implements the crawl command that runs the worker pool
// against planned targets until the queue drains or the operator stops it.
package crawl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/goprospect/cmd/common"
	"github.com/jonesrussell/goprospect/internal/api"
	"github.com/jonesrussell/goprospect/internal/config"
	"github.com/jonesrussell/goprospect/internal/crawl"
	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/directory"
	"github.com/jonesrussell/goprospect/internal/filter"
	"github.com/jonesrussell/goprospect/internal/indexer"
	"github.com/jonesrussell/goprospect/internal/logger"
	"github.com/jonesrussell/goprospect/internal/parser"
	"github.com/jonesrussell/goprospect/internal/pool"
	"github.com/jonesrussell/goprospect/internal/proxy"
	"github.com/jonesrussell/goprospect/internal/stats"
)

const (
	signalChannelBufferSize = 1
	defaultShutdownTimeout  = 30 * time.Second
)

// Command returns the crawl command for use in the root command.
func Command() *cobra.Command {
	var workers int
	var states []string
	var maxPages int

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run the worker pool against planned targets",
		Long: `This command claims planned targets from the database and crawls them
with a pool of politely throttled workers. It runs until interrupted
(SIGINT/SIGTERM) or stopped over the ops API, checkpointing progress
after every page so a later run resumes where this one left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers > 0 {
				viper.Set("pool.workers", workers)
			}
			if len(states) > 0 {
				viper.Set("pool.states", states)
			}
			if maxPages > 0 {
				viper.Set("pool.max_pages_override", maxPages)
			}

			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			return Start(cmd.Context(), deps)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0,
		"Override the configured worker count (0 means use config)")
	cmd.Flags().StringSliceVar(&states, "states", nil,
		"Override the configured state codes, e.g. --states TX,OK,NM")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0,
		"Override every target's page budget (0 means use per-target budgets)")

	return cmd
}

// Start wires the pipeline and runs the fleet until interrupted.
func Start(ctx context.Context, deps common.CommandDeps) error {
	log := deps.Logger
	cfg := deps.Config

	// Phase 1: storage
	db, err := database.NewPostgresConnection(cfg.GetDatabaseConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	targets := database.NewTargetRepository(db)
	companies := database.NewCompanyRepository(db)
	rejects := database.NewRejectRepository(db)

	// Phase 2: filter rules
	filterCfg := cfg.GetFilterConfig()
	lists, err := filter.LoadLists(
		filterCfg.AllowlistPath,
		filterCfg.BlocklistPath,
		filterCfg.AntiKeywordsPath,
		filterCfg.PositiveHintsPath,
		filterCfg.DenyDomainsPath,
	)
	if err != nil {
		return fmt.Errorf("failed to load filter lists: %w", err)
	}
	decider := filter.New(filterCfg, lists)

	// Phase 3: proxies
	proxies := proxy.NewPool(cfg.GetProxyConfig(), log)
	if loadErr := proxies.Load(); loadErr != nil {
		return fmt.Errorf("failed to load proxies: %w", loadErr)
	}

	// Phase 4: directory source and shared collaborators
	source := directory.NewYellowPages(parser.Options{
		IncludeSponsored: filterCfg.IncludeSponsored,
	})
	collector := stats.NewCollector()

	mirror, err := buildMirror(cfg, source.Name(), log)
	if err != nil {
		return fmt.Errorf("failed to connect mirror index: %w", err)
	}

	// Phase 5: worker pool
	manager, err := pool.NewManager(pool.ManagerDeps{
		Targets:   targets,
		Companies: companies,
		Rejects:   rejects,
		Source:    source,
		Filter:    decider,
		Proxies:   proxies,
		Logger:    log,
		Stats:     collector,
		Mirror:    mirror,
	}, pool.ManagerConfig{
		Pool:    cfg.GetPoolConfig(),
		Fetch:   cfg.GetFetchConfig(),
		Limiter: cfg.GetLimiterConfig(),
	})
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	// Phase 6: ops server
	var ops *api.Server
	if cfg.GetServerConfig().Enabled {
		ops = api.NewServer(cfg.GetServerConfig(), api.Deps{
			Logger:    log,
			Pool:      manager,
			Targets:   targets,
			Parker:    targets,
			Companies: companies,
			Rejects:   rejects,
			Stats:     collector,
		})
		ops.Start()
	}

	if startErr := manager.Start(ctx); startErr != nil {
		return fmt.Errorf("failed to start worker pool: %w", startErr)
	}

	// Phase 7: run until interrupted
	runUntilInterrupt(log, manager)

	// Phase 8: shutdown
	if ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if shutdownErr := ops.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Warn("failed to shut down ops server", "error", shutdownErr.Error())
		}
	}

	summaryPath := cfg.GetPoolConfig().SummaryPath
	if writeErr := collector.WriteSummary(summaryPath); writeErr != nil {
		log.Warn("failed to write run summary", "error", writeErr.Error(), "path", summaryPath)
	}
	logSummary(log, collector)

	return nil
}

// buildMirror connects the optional Elasticsearch mirror. A disabled
// mirror comes back nil so the pool skips it entirely.
func buildMirror(cfg config.Interface, sourceName string, log logger.Interface) (crawl.Mirror, error) {
	esCfg := cfg.GetElasticsearchConfig()
	if !esCfg.Enabled {
		return nil, nil
	}

	client, err := indexer.NewClient(esCfg, log)
	if err != nil {
		return nil, err
	}
	return indexer.New(client, esCfg, sourceName, log), nil
}

// runUntilInterrupt blocks until a shutdown signal arrives or the fleet
// exits on its own (typically a stop requested over the ops API).
func runUntilInterrupt(log logger.Interface, manager *pool.Manager) {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	go func() {
		manager.Wait()
		close(done)
	}()

	select {
	case sig := <-sigChan:
		log.Info("Shutdown signal received", "signal", sig.String())
		manager.Stop()
	case <-done:
		log.Info("Worker fleet exited")
	}
}

// logSummary reports the run counters at shutdown.
func logSummary(log logger.Interface, collector *stats.Collector) {
	summary := collector.Summary()
	log.Info("Run complete",
		"duration_seconds", summary.DurationSeconds,
		"targets_done", summary.TargetsDone,
		"targets_failed", summary.TargetsFailed,
		"targets_requeued", summary.TargetsRequeued,
		"early_exits", summary.EarlyExits,
		"pages", summary.Pages,
		"listings_seen", summary.ListingsSeen,
		"listings_accepted", summary.ListingsAccepted,
	)
}

// Package scheduler implements the long-running daemon command: every
// configured source on its own cadence, plus the operational HTTP API.
package scheduler

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/gigharvest/cmd/common"
	"github.com/jonesrussell/gigharvest/internal/api"
	"github.com/jonesrussell/gigharvest/internal/scheduler"
	"github.com/jonesrussell/gigharvest/internal/sources"
)

// Command returns the scheduler daemon command.
func Command(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the ingestion scheduler daemon",
		Long: `The scheduler daemon runs every configured source on its own staggered
cadence, sweeps job health periodically, and serves the operational API.
It runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *cfgFile)
		},
	}
}

func run(parent context.Context, cfgFile string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := common.Bootstrap(cfgFile)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Cfg
	log := app.Logger

	sched, err := scheduler.New(app.Registry.Metas(), app.Runner, scheduler.Config{
		StaggerMinutes: cfg.Scheduler.StaggerMinutes,
		Overrides:      cfg.Scheduler.Overrides,
		SweepInterval:  cfg.Scheduler.SweepInterval,
		StuckThreshold: cfg.Scheduler.StuckThreshold,
		StaleThreshold: cfg.Scheduler.StaleThreshold,
		ErrorCooldown:  cfg.Scheduler.ErrorCooldown,
		DrainTimeout:   cfg.Scheduler.ShutdownTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if cfg.Sources.Watch {
		// Definition edits apply to running jobs on their next run;
		// added or removed sources take effect on restart.
		watcher := sources.NewWatcher(cfg.Sources.Dir, func() {
			if reloadErr := app.ReloadSources(); reloadErr != nil {
				log.Error("Source reload failed", "error", reloadErr)
			}
		}, log)
		go func() {
			if watchErr := watcher.Watch(ctx); watchErr != nil {
				log.Error("Source watcher stopped", "error", watchErr)
			}
		}()
	}

	handler := api.NewHandler(sched, app.Registry, app.History, cfg.Database.HistoryLimit, log)
	server := api.NewServer(cfg.API, api.NewRouter(handler, log), log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Info("Daemon running",
		"sources", len(app.Registry.Names()),
		"api", cfg.API.Address,
	)

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		if err != nil {
			log.Error("API server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("API shutdown failed", "error", shutdownErr)
	}
	if stopErr := sched.Stop(); stopErr != nil {
		log.Warn("Scheduler stop reported", "error", stopErr)
	}
	return err
}

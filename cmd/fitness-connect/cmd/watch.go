// file: cmd/fitness-connect/cmd/watch.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"fitness-connect/config"
	"fitness-connect/internal/events"
	"fitness-connect/internal/lifecycle"
	"fitness-connect/internal/logger"
	"fitness-connect/internal/metrics"
	"fitness-connect/internal/syncer"
)

const (
	// syncRunTimeout caps one scheduled sync run; persisted state stays
	// consistent on expiry because the marker commits only after an Ack
	syncRunTimeout = 5 * time.Minute

	closeTimeout = 10 * time.Second
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run sync on a schedule until interrupted",
	Long: `The watch command keeps the process running and performs a sync run
on the configured schedule (a fixed interval or a cron expression). SIGHUP
reloads the configuration; SIGINT/SIGTERM shut down gracefully. When
metrics are enabled a Prometheus endpoint is exposed for the duration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bootstrap logger just for lifecycle output; each app instance
		// builds its own from the freshly loaded config.
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log, err := logger.NewLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()

		createApp := func() (lifecycle.Application, error) {
			return newWatchApp()
		}
		return lifecycle.RunWithReload(createApp, log)
	},
}

// watchApp is the long-running watch daemon
type watchApp struct {
	cfg           *config.Config
	logger        *logger.Logger
	orch          *syncer.Orchestrator
	scheduler     gocron.Scheduler
	metricsServer *metrics.Server
	publisher     *events.Publisher
}

// newWatchApp loads config and wires the daemon components
func newWatchApp() (*watchApp, error) {
	var (
		m        *metrics.Metrics
		registry *prometheus.Registry
	)

	// Peek at the config first to know whether metrics are wanted
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		m, err = metrics.NewMetrics(registry)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	rt, err := newRuntime(nil, m)
	if err != nil {
		return nil, err
	}

	orch, err := rt.orchestrator()
	if err != nil {
		return nil, err
	}

	app := &watchApp{
		cfg:    rt.cfg,
		logger: rt.logger,
		orch:   orch,
	}

	if cfg.Metrics.Enabled {
		app.metricsServer = metrics.NewServer(cfg.Metrics.Address, registry, rt.logger)
	}

	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(&cfg.Events, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		app.publisher = pub
	}

	return app, nil
}

// Run starts the scheduler and blocks until the context is cancelled.
func (a *watchApp) Run(ctx context.Context) error {
	if a.metricsServer != nil {
		a.metricsServer.Start()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	a.scheduler = scheduler

	var definition gocron.JobDefinition
	if a.cfg.Watch.Cron != "" {
		definition = gocron.CronJob(a.cfg.Watch.Cron, false)
		a.logger.Info("watch schedule established", "cron", a.cfg.Watch.Cron)
	} else {
		definition = gocron.DurationJob(a.cfg.Watch.Every)
		a.logger.Info("watch schedule established", "every", a.cfg.Watch.Every)
	}

	_, err = scheduler.NewJob(
		definition,
		gocron.NewTask(func() { a.runOnce(ctx) }),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}

	scheduler.Start()

	<-ctx.Done()
	return nil
}

// runOnce performs a single scheduled sync run
func (a *watchApp) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, syncRunTimeout)
	defer cancel()

	res := a.orch.Run(runCtx)

	if a.publisher != nil {
		a.publisher.PublishResult(res)
	}
}

// Close shuts down the scheduler, metrics server, and event publisher.
func (a *watchApp) Close() error {
	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(); err != nil {
			a.logger.Warn("scheduler shutdown error", "error", err)
		}
		a.scheduler = nil
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown error", "error", err)
		}
		cancel()
		a.metricsServer = nil
	}

	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}

	return nil
}

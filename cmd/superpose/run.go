package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"polaris-hq/superpose/pkg/audit"
	"polaris-hq/superpose/pkg/audit/recorder"
	"polaris-hq/superpose/pkg/audit/retention"
	auditstorage "polaris-hq/superpose/pkg/audit/storage"
	"polaris-hq/superpose/pkg/cli"
	"polaris-hq/superpose/pkg/compliance"
	"polaris-hq/superpose/pkg/config"
	"polaris-hq/superpose/pkg/entangle"
	"polaris-hq/superpose/pkg/resolve"
	"polaris-hq/superpose/pkg/secrets"
	"polaris-hq/superpose/pkg/server"
	"polaris-hq/superpose/pkg/service"
	"polaris-hq/superpose/pkg/superposition"
	"polaris-hq/superpose/pkg/superposition/store"
	"polaris-hq/superpose/pkg/sweep"
	"polaris-hq/superpose/pkg/telemetry/logging"
	"polaris-hq/superpose/pkg/telemetry/metrics"
	"polaris-hq/superpose/pkg/uncertainty"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the superpose server",
	Long: `Start the superpose server with the specified configuration.

The server holds policy records in superposition and serves the resolution
API over HTTP, recording every resolution in the audit trail.

Examples:
  # Start with default config
  superpose run

  # Start with custom config
  superpose run --config /etc/superpose/config.yaml

  # Override listen address
  superpose run --listen 0.0.0.0:8420

  # Validate config without starting the server
  superpose run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Superpose v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Cancelled on SIGINT/SIGTERM so background schedulers shut down with
	// the server.
	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	// Baseline key and entanglement layer. The key value is never logged.
	secretProvider, err := secrets.NewProvider(cfg.Baseline.Provider, cfg.Baseline.Dir)
	if err != nil {
		return fmt.Errorf("failed to create secrets provider: %w", err)
	}
	entangler, err := entangle.Load(ctx, secretProvider)
	if err != nil {
		return fmt.Errorf("failed to load baseline key: %w", err)
	}
	slog.Info("baseline key loaded",
		"provider", secretProvider.Provider(),
		"key_id", entangler.KeyID(),
	)

	// Policy record store
	recordStore, err := store.Open(store.Config{
		Backend:     store.Backend(cfg.Store.Backend),
		Path:        cfg.Store.Path,
		SyncWrites:  cfg.Store.SyncWrites,
		BusyTimeout: cfg.Store.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer recordStore.Close()
	fmt.Printf("✓ Record store initialized (%s)\n", cfg.Store.Backend)

	// Uncertainty controller
	controller, err := uncertainty.NewController(cfg.Uncertainty.InitialLambda)
	if err != nil {
		return fmt.Errorf("invalid initial uncertainty: %w", err)
	}

	// Resolution engine
	engine := resolve.NewEngine(recordStore, entangler, controller, resolutionConfig(cfg))
	manager := superposition.NewManager(recordStore)

	// Metrics
	collector := metrics.NewCollector(metrics.Config{Enabled: cfg.Telemetry.Metrics.Enabled}, nil)
	collector.SetLambda(cfg.Uncertainty.InitialLambda)

	// Audit trail
	var auditRecorder *recorder.Recorder
	if cfg.Audit.Enabled {
		var auditStorage audit.Storage
		switch cfg.Audit.Backend {
		case "sqlite":
			auditStorage, err = auditstorage.NewSQLiteStorage(&auditstorage.SQLiteConfig{
				Path:        cfg.Audit.SQLite.Path,
				WALMode:     true,
				BusyTimeout: cfg.Audit.SQLite.BusyTimeout,
			})
			if err != nil {
				return fmt.Errorf("failed to create audit storage: %w", err)
			}
		case "memory":
			auditStorage = auditstorage.NewMemoryStorage()
		default:
			return fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
		}
		defer auditStorage.Close()

		auditRecorder = recorder.NewRecorder(auditStorage, &recorder.Config{
			AsyncBuffer:  cfg.Audit.Recorder.AsyncBuffer,
			WriteTimeout: cfg.Audit.Recorder.WriteTimeout,
		})
		defer auditRecorder.Close()

		if cfg.Audit.Retention.Schedule != "" && cfg.Audit.Retention.Days > 0 {
			pruner := retention.NewPruner(auditStorage, &retention.Config{
				RetentionDays: cfg.Audit.Retention.Days,
				PruneSchedule: cfg.Audit.Retention.Schedule,
			})
			if err := pruner.Start(ctx); err != nil {
				slog.Warn("failed to start audit retention scheduler", "error", err)
			} else {
				defer pruner.Stop()
			}
		}

		fmt.Printf("✓ Audit trail initialized (%s)\n", cfg.Audit.Backend)
	}

	// Compliance backend
	backend, err := complianceBackend(cfg)
	if err != nil {
		return err
	}

	// Service surface
	svc := service.New(manager, engine, entangler, controller, backend, auditRecorder, collector,
		service.Config{FailOpen: cfg.Compliance.FailOpen})

	// Background deadline sweep
	sweeper := sweep.NewSweeper(recordStore, svc, sweep.Config{
		Enabled:  cfg.Sweep.Enabled,
		Schedule: cfg.Sweep.Schedule,
	})
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start deadline sweep: %w", err)
	}

	// Configuration hot-reload for runtime tunables
	if cfg.Watch {
		watcher, err := config.NewWatcher(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) {
				engine.UpdateConfig(resolutionConfig(next))
				svc.SetFailOpen(next.Compliance.FailOpen)
			})
			if err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	// HTTP server
	var metricsHandler = collector.Handler()
	if !cfg.Telemetry.Metrics.Enabled {
		metricsHandler = nil
	}
	srv := server.NewServer(&cfg.Server, svc, cfg.Telemetry.Metrics.Path, metricsHandler)

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a shutdown signal or a fatal server error.
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// resolutionConfig maps the file configuration onto engine parameters.
func resolutionConfig(cfg *config.Config) resolve.Config {
	order := make([]superposition.State, 0, len(cfg.Resolution.TieBreakOrder))
	for _, s := range cfg.Resolution.TieBreakOrder {
		order = append(order, superposition.State(s))
	}
	return resolve.Config{
		HighStakesCriticality:     superposition.Criticality(cfg.Resolution.HighStakesCriticality),
		HighStakesLambdaThreshold: cfg.Resolution.HighStakesLambdaThreshold,
		TieBreakOrder:             order,
	}
}

// complianceBackend builds the configured compliance integration. "none"
// yields a local always-allow backend for development.
func complianceBackend(cfg *config.Config) (compliance.Backend, error) {
	switch cfg.Compliance.Backend {
	case "http":
		return compliance.NewHTTPBackend(compliance.HTTPConfig{
			BaseURL: cfg.Compliance.BaseURL,
			Timeout: cfg.Compliance.Timeout,
		})
	case "none", "":
		return compliance.NewStaticBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported compliance backend: %s", cfg.Compliance.Backend)
	}
}

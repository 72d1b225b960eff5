package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/audit"
	"github.com/speclens/speclens/internal/config"
	"github.com/speclens/speclens/internal/core/check"
	"github.com/speclens/speclens/internal/core/store"
	errwrap "github.com/speclens/speclens/internal/errors"
	"github.com/speclens/speclens/internal/observability"
	"github.com/speclens/speclens/internal/output"
	"github.com/speclens/speclens/internal/server"
	"github.com/speclens/speclens/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// signalHealthChecker implements HealthChecker for signal system
type signalHealthChecker struct{}

func (s signalHealthChecker) CheckHealth(ctx context.Context) error {
	// Check if signal system is responsive
	// This is a basic check - in production you might want more sophisticated checks
	return nil // Signal handlers are registered and ready
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// storeHealthChecker pings the database backing the API
type storeHealthChecker struct {
	db *store.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.db == nil || s.db.DB == nil {
		return errwrap.NewStoreError("store not opened")
	}
	if err := s.db.DB.PingContext(ctx); err != nil {
		return errwrap.WrapStoreError(ctx, err, "store ping failed")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server with graceful shutdown support.

The API exposes ad-hoc URL checks (POST /api/v1/checks), check run
history (/api/v1/runs) and audit history (/api/v1/audits). When
audit.schedule is configured, full tree audits run inside the server
process on that cron schedule.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

The server will cleanly shut down the HTTP server, close the store and
flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get app identity for telemetry namespace
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		// Initialize server logger with namespace
		logLevel := viper.GetString("logging.level")
		observability.InitServerLogger(identity.BinaryName, logLevel, namespace)

		metricsPort := viper.GetInt("metrics.port")
		if metricsPort == 0 {
			metricsPort = 9090
		}

		// Initialize metrics with namespace
		if err := observability.InitMetrics(identity.BinaryName, metricsPort, namespace); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics",
				zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}

		// Bound flags win over the config file, flag defaults lose to it
		host := viper.GetString("server.host")
		port := viper.GetInt("server.port")

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", host),
			zap.Int("port", port),
			zap.Int("metrics_port", metricsPort))

		db, err := openStore(cmd.Context())
		if err != nil {
			observability.ServerLogger.Error("Failed to open store", zap.Error(err))
			return errwrap.WrapStoreError(cmd.Context(), err, "store initialization failed")
		}

		cfg := config.GetConfig()
		if cfg == nil {
			return errwrap.NewInternalError("config not loaded")
		}

		overrides, err := check.LoadOverrides(cfg.OverridesFile)
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "loading overrides failed")
		}

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("signal_handlers", signalHealthChecker{})
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})
		hm.RegisterChecker("store", storeHealthChecker{db: db})

		// Create server
		srv := server.New(host, port)

		// Wire handler dependencies
		handlers.SetAppIdentity(identity)
		handlers.SetCheckRunner(&server.CheckService{
			Config:    cfg,
			Store:     db,
			Overrides: overrides,
			Logger:    observability.ServerLogger,
		})
		handlers.SetRunQuerier(db)
		handlers.SetAuditQuerier(db)

		// Get shutdown timeout from config
		shutdownTimeout := viper.GetDuration("server.shutdown_timeout")
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close the store
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Closing store...")
			if err := db.Close(); err != nil {
				observability.ServerLogger.Warn("Store close returned error",
					zap.Error(err))
			}
			return nil
		})

		// Scheduled audits run inside the server process when configured
		if cfg.Audit.Schedule != "" {
			scheduler, err := startAuditScheduler(cfg, db)
			if err != nil {
				return err
			}

			// Handler 3: Stop the scheduler, waiting out a running sweep
			signals.OnShutdown(func(ctx context.Context) error {
				observability.ServerLogger.Info("Stopping audit scheduler...")
				select {
				case <-scheduler.Stop().Done():
				case <-ctx.Done():
					observability.ServerLogger.Warn("Audit sweep still running at shutdown deadline")
				}
				return nil
			})
		}

		// Last handler: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			// Attempt to reload configuration
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			observability.ServerLogger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))

			// TODO: Add hooks for components that need to react to config changes
			// - Update log levels if changed
			// - Rebuild the check service with the new batch policy

			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", host),
				zap.Int("port", port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

// startAuditScheduler wires the cron-driven audit sweep. Each sweep
// audits audit.root and, when audit.out_dir is set, drops HTML
// reports there.
func startAuditScheduler(cfg *config.Config, db *store.Store) (*cron.Cron, error) {
	if cfg.Audit.Root == "" {
		return nil, errwrap.NewConfigInvalidError("audit.schedule is set but audit.root is empty")
	}

	runner := &audit.Runner{
		Config:   cfg,
		Store:    db,
		Logger:   observability.ServerLogger,
		UseCache: true,
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(cfg.Audit.Schedule, func() {
		outcome, err := runner.Run(context.Background(), cfg.Audit.Root, cfg.Audit.Pattern)
		if err != nil {
			observability.ServerLogger.Error("Scheduled audit failed",
				zap.String("root", cfg.Audit.Root),
				zap.Error(err))
			return
		}
		if cfg.Audit.OutDir != "" {
			if err := writeAuditReports(output.FormatHTML, outcome, cfg.Audit.OutDir); err != nil {
				observability.ServerLogger.Error("Writing audit reports failed",
					zap.String("dir", cfg.Audit.OutDir),
					zap.Error(err))
				return
			}
			observability.ServerLogger.Info("Audit reports written",
				zap.String("run", outcome.Run.ID),
				zap.String("dir", cfg.Audit.OutDir))
		}
	})
	if err != nil {
		return nil, errwrap.NewConfigInvalidError("invalid audit.schedule: " + err.Error())
	}

	scheduler.Start()
	observability.ServerLogger.Info("Audit scheduler started",
		zap.String("schedule", cfg.Audit.Schedule),
		zap.String("root", cfg.Audit.Root))
	return scheduler, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "127.0.0.1", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8270, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

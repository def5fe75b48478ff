package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/internal/telemetry"
	"github.com/marmos91/cfmgr/pkg/api"
	"github.com/marmos91/cfmgr/pkg/config"
	"github.com/marmos91/cfmgr/pkg/metrics"

	// Import prometheus metrics to register the recorder constructors
	_ "github.com/marmos91/cfmgr/pkg/metrics/prometheus"
)

var (
	foreground  bool
	pidFile     string
	logFile     string
	watchConfig bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cfmgr server",
	Long: `Start the cfmgr server.

The server opens every configured database and bucket and serves the REST
API. By default it runs in the background; use --foreground to keep it
attached to the terminal.

Examples:
  # Start in background
  cfmgr start

  # Start in foreground with a custom config
  cfmgr start --foreground --config /etc/cfmgr/config.yaml

  # Reload the log level when the config file changes
  cfmgr start --foreground --watch-config

  # Override settings through the environment
  CFMGR_LOGGING_LEVEL=DEBUG cfmgr start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/cfmgr/cfmgr.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to daemon log file (default: $XDG_STATE_HOME/cfmgr/cfmgr.log)")
	startCmd.Flags().BoolVar(&watchConfig, "watch-config", false, "Apply logging changes from the config file without a restart")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "cfmgr",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "cfmgr",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", configSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	if pidFile != "" {
		if err := writePidFile(pidFile); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Metrics must be enabled before the managers are created so that
	// they receive recorders.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer = startMetricsServer(cfg.Metrics.Port)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	rows, err := config.CreateRowStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open databases: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close databases", logger.KeyError, err)
		}
	}()

	objects, err := config.CreateObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open buckets: %w", err)
	}
	defer func() {
		if err := objects.Close(); err != nil {
			logger.Error("Failed to close buckets", logger.KeyError, err)
		}
	}()

	logger.Info("Stores ready", "databases", len(rows.ListInstances()), "buckets", len(objects.ListBuckets()))
	if !cfg.Auth.Enabled() {
		logger.Warn("No API key or JWT secret configured, the API is public")
	}

	apiServer, err := api.NewServer(cfg.Server, api.Dependencies{
		RowStore:    rows,
		ObjectStore: objects,
		Auth:        cfg.Auth,
		Presign:     cfg.Presign,
		Metrics:     metrics.NewHTTPMetrics(),
		Version:     Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	if watchConfig {
		path := GetConfigFile()
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		go func() {
			if err := config.Watch(ctx, path, applyConfigChange(cfg)); err != nil {
				logger.Error("Config watcher stopped", logger.KeyError, err)
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		stopErr := apiServer.Stop(shutdownCtx)
		stopMetricsServer(shutdownCtx, metricsServer)
		cancel()

		if err := <-serverDone; err != nil {
			stopErr = errors.Join(stopErr, err)
		}
		if stopErr != nil {
			logger.Error("Server shutdown error", logger.KeyError, stopErr)
			return stopErr
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		stopMetricsServer(shutdownCtx, metricsServer)
		if err != nil {
			logger.Error("Server error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// applyConfigChange returns the reload callback. Only the logging section
// applies live; other changes are reported as needing a restart.
func applyConfigChange(current *config.Config) func(*config.Config) {
	return func(next *config.Config) {
		if next.Logging.Level != current.Logging.Level {
			logger.SetLevel(next.Logging.Level)
			logger.Info("Log level changed", "from", current.Logging.Level, "to", next.Logging.Level)
		}
		if next.Logging.Format != current.Logging.Format {
			logger.SetFormat(next.Logging.Format)
			logger.Info("Log format changed", "format", next.Logging.Format)
		}
		if restart := restartRequired(current, next); len(restart) > 0 {
			logger.Warn("Configuration changes need a restart", "sections", restart)
		}
		current.Logging = next.Logging
	}
}

// restartRequired lists the changed sections that only apply at startup.
func restartRequired(current, next *config.Config) []string {
	var sections []string
	if current.Server != next.Server {
		sections = append(sections, "server")
	}
	if current.Auth != next.Auth {
		sections = append(sections, "auth")
	}
	if current.Presign != next.Presign {
		sections = append(sections, "presign")
	}
	if current.Metrics != next.Metrics {
		sections = append(sections, "metrics")
	}
	if !sameKeys(current.Databases, next.Databases) || !sameKeys(current.Buckets, next.Buckets) {
		sections = append(sections, "stores")
	}
	return sections
}

// sameKeys reports whether a and b name the same instances.
func sameKeys[V any](a, b map[string]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// startMetricsServer serves /metrics on port until stopped.
func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logger.KeyError, err)
		}
	}()
	return srv
}

func stopMetricsServer(ctx context.Context, srv *http.Server) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Metrics server shutdown error", logger.KeyError, err)
	}
}

// configSource names where the running configuration came from.
func configSource(configFile string) string {
	switch {
	case configFile != "":
		return configFile
	case config.DefaultConfigExists():
		return config.GetDefaultConfigPath()
	default:
		return "defaults"
	}
}

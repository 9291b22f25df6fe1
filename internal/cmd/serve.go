package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/config"
	apperrors "github.com/namelens/ascgate/internal/errors"
	"github.com/namelens/ascgate/internal/gateway"
	"github.com/namelens/ascgate/internal/observability"
	"github.com/namelens/ascgate/internal/server"
	"github.com/namelens/ascgate/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	Long: `Start the HTTP gateway with graceful shutdown support.

Routes:
  GET /health, /health/live, /health/ready, /health/startup
  GET /version
  GET /v1/*           read-only passthrough (?all=true&max=N walks every page)
  GET /uploads        local upload journal

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file re-read (restart to apply credential changes)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

// buildServer wires the gateway into the HTTP server and registers the
// readiness checks for credentials and the journal.
func buildServer(cfg *config.Config, gw *gateway.Gateway) *server.Server {
	opts := []server.Option{
		server.WithAPI(gw.Executor, cfg.API.BaseURL),
		server.WithRateWindow(gw.Limiter),
		server.WithTimeouts(cfg.Server),
		server.WithHealthChecker("credentials", handlers.CheckerFunc(func(ctx context.Context) error {
			_, err := gw.Credentials.Acquire(ctx)
			return err
		})),
	}
	if gw.Store != nil {
		opts = append(opts,
			server.WithJournal(gw.Store),
			server.WithHealthChecker("journal", gw.Store),
		)
	}
	if observability.TelemetrySystem != nil {
		opts = append(opts, server.WithHealthChecker("telemetry", handlers.CheckerFunc(func(ctx context.Context) error {
			if observability.PrometheusExporter == nil {
				return apperrors.NewUnavailableError("metrics exporter not running")
			}
			return nil
		})))
	}
	return server.New(cfg.Server.Host, cfg.Server.Port, opts...)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	observability.InitServerLogger(config.AppName, cfg.Logging.Level, observability.MetricsNamespace)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, observability.MetricsNamespace); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "metrics initialization failed")
		}
	}

	gw, err := gateway.New(ctx, cfg, append([]gateway.Option{gateway.WithLogger(logger)}, gatewayOptions...)...)
	if err != nil {
		return err
	}

	logger.Info("Initializing server",
		zap.String("service", config.AppName),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("upstream", cfg.API.BaseURL),
		zap.Bool("journal", gw.Store != nil),
		zap.Int("metrics_port", observability.GetMetricsPort()))

	srv := buildServer(cfg, gw)

	// Shutdown handlers run LIFO: HTTP server, then gateway, then logger flush.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		_ = observability.StopMetrics()
		if err := gw.Close(); err != nil {
			return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "gateway shutdown failed")
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: re-reading config file")

		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return apperrors.WrapConfigInvalid(ctx, err, "config reload failed")
		}
		if _, err := config.Load(viper.GetViper()); err != nil {
			return apperrors.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		logger.Info("Configuration re-read; restart to apply credential or limit changes",
			zap.String("file", viper.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		_ = gw.Close()
		return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "server error")
	}
	return nil
}

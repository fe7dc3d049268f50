package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dialoq/dialoq/internal/assistant"
	"github.com/dialoq/dialoq/internal/core/engine"
	"github.com/dialoq/dialoq/internal/core/store"
	errwrap "github.com/dialoq/dialoq/internal/errors"
	"github.com/dialoq/dialoq/internal/observability"
	"github.com/dialoq/dialoq/internal/server"
	"github.com/dialoq/dialoq/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// signalHealthChecker implements HealthChecker for signal system
type signalHealthChecker struct{}

func (s signalHealthChecker) CheckHealth(ctx context.Context) error {
	// Signal handlers are registered and ready
	return nil
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

// storeHealthChecker reports store occupancy against capacity.
type storeHealthChecker struct {
	store *store.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.store == nil {
		return errwrap.NewInternalError("user store not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long: `Start the relay server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

On shutdown the server stops accepting messages, waits for in-flight
reply queues to drain, and flushes logs.`,
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

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", serverHost),
			zap.Int("port", serverPort),
			zap.Int("metrics_port", metricsPort))

		// Build the message-handling core
		userStore, err := store.New(viper.GetInt("store.capacity"))
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid store capacity")
		}

		limits := engine.LimitConfig{
			MaxMessages:   viper.GetInt("limits.max_messages"),
			Window:        viper.GetDuration("limits.window"),
			BanDuration:   viper.GetDuration("limits.ban_duration"),
			WarnThreshold: viper.GetInt("limits.warn_threshold"),
		}
		if err := limits.Validate(); err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid admission limits")
		}

		driver := assistant.NewOpenAIClient(
			viper.GetString("assistant.base_url"),
			viper.GetString("assistant.api_key"),
		)
		svc := &assistant.Service{
			Driver:       driver,
			AssistantID:  viper.GetString("assistant.model"),
			SystemPrompt: viper.GetString("assistant.system_prompt"),
			Timeout:      viper.GetDuration("assistant.timeout"),
			MaxHistory:   viper.GetInt("assistant.max_history"),
		}

		heartbeat := engine.NewHeartbeatEmitter(
			clock.New(),
			viper.GetDuration("heartbeat.period"),
			observability.ServerLogger,
		)

		dispatcher := &engine.Dispatcher{
			Store:     userStore,
			Ask:       svc.Ask,
			Heartbeat: heartbeat,
			Logger:    observability.ServerLogger,
		}

		relay := &engine.Relay{
			Bans:       &engine.BanGate{Store: userStore},
			Limiter:    &engine.RateLimiter{Store: userStore, Limits: limits},
			Dispatcher: dispatcher,
			Logger:     observability.ServerLogger,
		}

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("signal_handlers", signalHealthChecker{})
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		hm.RegisterChecker("user_store", storeHealthChecker{store: userStore})
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})

		// Create server
		srv := server.New(serverHost, serverPort, server.Options{
			Relay:              relay,
			DefaultCallbackURL: viper.GetString("ingress.callback_url"),
		})

		// Set app identity for handlers
		handlers.SetAppIdentity(identity)

		// Get shutdown timeout from config
		shutdownTimeout := viper.GetDuration("server.shutdown_timeout")
		if shutdownTimeout == 0 {
			shutdownTimeout = 30 * time.Second
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

		// Handler 2: Drain in-flight reply queues (executed second)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Waiting for reply queues to drain...")
			done := make(chan struct{})
			go func() {
				dispatcher.Wait()
				close(done)
			}()
			select {
			case <-done:
				observability.ServerLogger.Info("Reply queues drained")
			case <-ctx.Done():
				observability.ServerLogger.Warn("Shutdown deadline reached with queues still draining")
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
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

			// Rate limits and store capacity are read at startup; a restart
			// is required for those to change.

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
				zap.String("host", serverHost),
				zap.Int("port", serverPort))
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

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "127.0.0.1", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

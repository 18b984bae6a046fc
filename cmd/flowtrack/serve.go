package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/flowtrack/internal/api"
	"github.com/goodtune/flowtrack/internal/config"
	"github.com/goodtune/flowtrack/internal/metrics"
	"github.com/goodtune/flowtrack/internal/service"
	"github.com/goodtune/flowtrack/internal/systemd"
	"github.com/goodtune/flowtrack/internal/tracking"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tracker",
	Long:  `Start the session engine, the retention scheduler, the HTTP API and the metrics endpoint.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting flowtrack")

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	provider, err := openProvider(cfg.Window, logger)
	if err != nil {
		return err
	}

	tracker := service.New(service.Options{
		Store:    store,
		Provider: provider,
		Tracking: trackingConfig(cfg.Tracking),
		Logger:   logger,
	})

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	resumed, err := tracker.Resume(startCtx)
	cancelStart()
	if err != nil {
		return fmt.Errorf("failed to resume tracking: %w", err)
	}
	if resumed != nil {
		logger.Info().
			Str("space_id", resumed.ID).
			Str("space", resumed.Name).
			Msg("Resumed active space")
	}

	retention, err := tracking.NewRetentionScheduler(
		store.Entries(),
		cfg.Tracking.RetentionDays,
		cfg.Tracking.RetentionTime,
		nil,
		tracker.Notifier(),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize retention scheduler: %w", err)
	}
	retention.Start()

	apiServer, metricsServer, err := startServers(cfg.Server, tracker, sdListeners, logger)
	if err != nil {
		retention.Stop()
		return err
	}

	// Ticking starts only once nothing can fail before the shutdown path.
	engine := tracker.Engine()
	engine.Start()

	logger.Info().Msg("flowtrack startup complete")

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	watchdogStop := make(chan struct{})
	go systemd.Watchdog(watchdogStop, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			// SIGHUP flushes pending time without stopping
			if err := engine.Flush(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Flush on SIGHUP failed")
			} else {
				logger.Info().Msg("Pending time flushed")
			}
			continue
		}
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
		break
	}

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	close(watchdogStop)

	retention.Stop()

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping API server")
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := engine.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to flush pending time on shutdown")
	}

	logger.Info().Msg("flowtrack stopped")
	return nil
}

// startServers starts the enabled HTTP servers. If one fails, any server
// already started is stopped before returning.
func startServers(cfg config.ServerConfig, tracker *service.Tracker, listeners *systemd.Listeners, logger zerolog.Logger) (*api.Server, *metrics.Server, error) {
	var apiServer *api.Server
	if cfg.APIEnabled {
		apiServer = api.NewServer(api.Config{
			ListenAddr:     fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.APIPort),
			AllowedOrigins: cfg.AllowedOrigins,
		}, tracker, logger)

		if listeners != nil && listeners.Activated && listeners.API != nil {
			apiServer.SetListener(listeners.API)
		}
		if err := apiServer.Start(); err != nil {
			return nil, nil, fmt.Errorf("failed to start API server: %w", err)
		}
	}

	var metricsServer *metrics.Server
	if cfg.MetricsEnabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		if listeners != nil && listeners.Activated && listeners.Metrics != nil {
			metricsServer.SetListener(listeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			if apiServer != nil {
				if stopErr := apiServer.Stop(); stopErr != nil {
					logger.Error().Err(stopErr).Msg("Error stopping API server")
				}
			}
			return nil, nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	return apiServer, metricsServer, nil
}

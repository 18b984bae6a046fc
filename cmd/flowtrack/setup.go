package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goodtune/flowtrack/internal/config"
	"github.com/goodtune/flowtrack/internal/service"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/goodtune/flowtrack/internal/storage/bolt"
	"github.com/goodtune/flowtrack/internal/storage/memory"
	"github.com/goodtune/flowtrack/internal/storage/redis"
	"github.com/goodtune/flowtrack/internal/storage/sqlite"
	"github.com/goodtune/flowtrack/internal/tracking"
	"github.com/goodtune/flowtrack/internal/window"
	"github.com/rs/zerolog"
)

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "bolt", "":
		return bolt.Open(cfg.Path)
	case "sqlite":
		return sqlite.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func openProvider(cfg config.WindowConfig, logger zerolog.Logger) (window.Provider, error) {
	switch cfg.Provider {
	case "exec":
		return window.NewExec(window.ExecConfig{
			FocusCommand:      cfg.FocusCommand,
			RunningCommand:    cfg.RunningCommand,
			InstalledCommand:  cfg.InstalledCommand,
			InstalledCacheTTL: config.ParseDuration(cfg.InstalledCacheTTL, 10*time.Minute),
		}, logger), nil
	case "static":
		return window.NewStatic(cfg.StaticApp), nil
	default:
		return nil, fmt.Errorf("unsupported window provider: %s", cfg.Provider)
	}
}

func trackingConfig(cfg config.TrackingConfig) tracking.Config {
	return tracking.Config{
		TickInterval:  config.ParseDuration(cfg.TickInterval, tracking.DefaultTickInterval),
		FlushInterval: config.ParseDuration(cfg.FlushInterval, tracking.DefaultTickInterval),
		FocusTimeout:  config.ParseDuration(cfg.FocusTimeout, tracking.DefaultFocusTimeout),
	}
}

// withTracker opens the configured store for a one-shot command. The ticker is
// not started; only warnings and errors are logged, to stderr.
func withTracker(fn func(ctx context.Context, tracker *service.Tracker) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, tracker)
}

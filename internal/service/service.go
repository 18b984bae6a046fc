// Package service exposes the tracker's public operations over the registry,
// the session engine, the entry store and the aggregator.
package service

import (
	"context"
	"fmt"

	"github.com/goodtune/flowtrack/internal/analytics"
	"github.com/goodtune/flowtrack/internal/clock"
	"github.com/goodtune/flowtrack/internal/space"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/goodtune/flowtrack/internal/tracking"
	"github.com/goodtune/flowtrack/internal/window"
	"github.com/rs/zerolog"
)

// Tracker is the public surface used by the API and the CLI.
type Tracker struct {
	store    storage.Store
	registry *space.Registry
	engine   *tracking.Engine
	provider window.Provider
	notifier *tracking.Notifier
	clock    clock.Clock
	logger   zerolog.Logger
}

// Options configures New.
type Options struct {
	Store    storage.Store
	Provider window.Provider
	Clock    clock.Clock
	Tracking tracking.Config
	Logger   zerolog.Logger
}

// New wires a registry and session engine over the store.
func New(opts Options) *Tracker {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	notifier := tracking.NewNotifier()

	registry := space.NewRegistry(opts.Store, clk, opts.Logger)
	engine := tracking.NewEngine(opts.Store.Entries(), registry, opts.Provider, clk, notifier, opts.Tracking, opts.Logger)
	registry.SetSessionController(engine)
	registry.SetNotifier(notifier)

	return &Tracker{
		store:    opts.Store,
		registry: registry,
		engine:   engine,
		provider: opts.Provider,
		notifier: notifier,
		clock:    clk,
		logger:   opts.Logger.With().Str("component", "tracker").Logger(),
	}
}

// Engine returns the session engine so the caller can drive its ticker.
func (t *Tracker) Engine() *tracking.Engine { return t.engine }

// Notifier returns the change notifier.
func (t *Tracker) Notifier() *tracking.Notifier { return t.notifier }

// Resume begins tracking the persisted active space, if any.
func (t *Tracker) Resume(ctx context.Context) (*storage.TrackingSpace, error) {
	return t.registry.Resume(ctx)
}

func (t *Tracker) CreateSpace(ctx context.Context, name, color string) (*storage.TrackingSpace, error) {
	return t.registry.Create(ctx, name, color)
}

func (t *Tracker) UpdateSpace(ctx context.Context, sp storage.TrackingSpace) ([]storage.TrackingSpace, error) {
	return t.registry.Update(ctx, sp)
}

func (t *Tracker) DeleteSpace(ctx context.Context, id string) ([]storage.TrackingSpace, error) {
	return t.registry.Delete(ctx, id)
}

func (t *Tracker) ListSpaces(ctx context.Context) ([]storage.TrackingSpace, error) {
	return t.registry.List(ctx)
}

func (t *Tracker) GetSpace(ctx context.Context, id string) (*storage.TrackingSpace, error) {
	return t.registry.Get(ctx, id)
}

func (t *Tracker) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	return t.registry.SetActive(ctx, id, active)
}

func (t *Tracker) Toggle(ctx context.Context, id string) (bool, error) {
	return t.registry.Toggle(ctx, id)
}

func (t *Tracker) StopAll(ctx context.Context) error {
	return t.registry.StopAll(ctx)
}

// QueryEntries returns stored entries matching the filter.
func (t *Tracker) QueryEntries(ctx context.Context, filter storage.EntryFilter) ([]storage.TimeEntry, error) {
	entries, err := t.store.Entries().Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	return entries, nil
}

// TodayStats returns today's seconds per app across all spaces, including
// time not yet flushed.
func (t *Tracker) TodayStats(ctx context.Context) (map[string]int64, error) {
	today := clock.Today(t.clock)
	return t.engine.WithPending(ctx, today, func(ctx context.Context) (map[string]int64, error) {
		entries, err := t.QueryEntries(ctx, storage.EntryFilter{DateFrom: today, DateTo: today})
		if err != nil {
			return nil, err
		}
		stats := make(map[string]int64)
		for _, e := range entries {
			stats[e.AppName] += e.Duration
		}
		return stats, nil
	})
}

// SessionInfo returns a snapshot of the current session.
func (t *Tracker) SessionInfo() tracking.SessionInfo {
	return t.engine.SessionInfo()
}

// Analytics summarises the range ending today, optionally for one space.
func (t *Tracker) Analytics(ctx context.Context, spaceID string, r analytics.Range) (analytics.Summary, error) {
	if spaceID != "" {
		if _, err := t.registry.Get(ctx, spaceID); err != nil {
			return analytics.Summary{}, err
		}
	}
	now := t.clock.Now()
	entries, err := t.QueryEntries(ctx, analytics.Filter(r, now, spaceID))
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(entries, r, now, spaceID), nil
}

func (t *Tracker) Settings(ctx context.Context) (storage.AppSettings, error) {
	settings, err := t.store.Settings().Load(ctx)
	if err != nil {
		return storage.AppSettings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

// SaveSettings stores the settings with muted apps normalised.
func (t *Tracker) SaveSettings(ctx context.Context, settings storage.AppSettings) (storage.AppSettings, error) {
	settings.MutedApps = space.NormalizeApps(settings.MutedApps)
	if err := t.store.Settings().Save(ctx, settings); err != nil {
		return storage.AppSettings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	t.notifier.Notify()
	return settings, nil
}

func (t *Tracker) InstalledApplications(ctx context.Context) ([]window.App, error) {
	return t.provider.InstalledApplications(ctx)
}

func (t *Tracker) RunningApplications(ctx context.Context) ([]window.App, error) {
	return t.provider.RunningApplications(ctx)
}

// FocusedApplication returns the app that currently has focus, if any.
func (t *Tracker) FocusedApplication(ctx context.Context) (*window.App, error) {
	return t.provider.FocusedApplication(ctx)
}

// Subscribe returns a channel signalled on every observable change.
func (t *Tracker) Subscribe() (<-chan struct{}, func()) {
	return t.notifier.Subscribe()
}

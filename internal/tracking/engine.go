// Package tracking runs the session engine that turns focus samples into
// per-app, per-day time entries.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/flowtrack/internal/clock"
	"github.com/goodtune/flowtrack/internal/metrics"
	"github.com/goodtune/flowtrack/internal/space"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/goodtune/flowtrack/internal/window"
	"github.com/rs/zerolog"
)

// SpaceSource reads the current definition of a space.
type SpaceSource interface {
	Get(ctx context.Context, id string) (*storage.TrackingSpace, error)
}

// Engine owns the tracking session. Only the engine writes durations.
type Engine struct {
	entries  storage.EntryStore
	spaces   SpaceSource
	provider window.Provider
	clock    clock.Clock
	notifier *Notifier
	cfg      Config
	logger   zerolog.Logger

	// flushMu serialises store writes. Lock order is flushMu, then mu.
	flushMu sync.Mutex

	mu              sync.Mutex
	spaceID         string
	generation      uint64
	sessionDuration int64
	startedAt       time.Time
	pending         map[pendingKey]int64
	inflight        map[pendingKey]int64 // taken from pending, write in progress
	writeSeq        uint64               // odd while a store write is in progress
	lastFlush       time.Time

	stopChan chan struct{}
	done     chan struct{}
}

// NewEngine creates a session engine in the Idle state.
func NewEngine(entries storage.EntryStore, spaces SpaceSource, provider window.Provider, clk clock.Clock, notifier *Notifier, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.TickInterval < time.Second {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.FlushInterval < cfg.TickInterval {
		cfg.FlushInterval = cfg.TickInterval
	}
	if cfg.FocusTimeout <= 0 {
		cfg.FocusTimeout = DefaultFocusTimeout
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &Engine{
		entries:  entries,
		spaces:   spaces,
		provider: provider,
		clock:    clk,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With().Str("component", "session-engine").Logger(),
		pending:  make(map[pendingKey]int64),
		inflight: make(map[pendingKey]int64),
	}
}

// Begin starts a fresh session for sp, ending any current one first. Time that
// could not be flushed stays buffered for the next retry.
func (e *Engine) Begin(ctx context.Context, sp storage.TrackingSpace) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	var batch map[pendingKey]int64
	if e.spaceID != "" {
		batch = e.endLocked()
	}

	e.generation++
	e.spaceID = sp.ID
	e.sessionDuration = 0
	e.startedAt = e.clock.Now()
	generation := e.generation
	e.mu.Unlock()

	if err := e.write(ctx, batch); err != nil {
		e.logger.Warn().Err(err).Msg("Previous session ended with unflushed time")
	}

	metrics.SessionActive.Set(1)
	metrics.SpaceTransitions.WithLabelValues("begin").Inc()

	e.logger.Info().
		Str("space_id", sp.ID).
		Str("space", sp.Name).
		Uint64("generation", generation).
		Msg("Session started")

	e.notifier.Notify()
	return nil
}

// End stops the current session. Pending time is flushed; on failure it stays
// buffered and ErrPersistence is returned, but the session still ends.
func (e *Engine) End(ctx context.Context) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	if e.spaceID == "" {
		e.mu.Unlock()
		return nil
	}
	batch := e.endLocked()
	e.mu.Unlock()

	err := e.write(ctx, batch)
	e.notifier.Notify()
	return err
}

// endLocked resets the session to Idle and hands back everything pending for
// the caller to write.
func (e *Engine) endLocked() map[pendingKey]int64 {
	e.logger.Info().
		Str("space_id", e.spaceID).
		Int64("session_seconds", e.sessionDuration).
		Msg("Session ended")

	e.generation++
	e.spaceID = ""
	e.sessionDuration = 0
	e.startedAt = time.Time{}

	metrics.SessionActive.Set(0)
	metrics.SpaceTransitions.WithLabelValues("end").Inc()
	return e.takeLocked()
}

// Discard drops pending increments of spaceID. It waits for a write in
// progress, so nothing of the space reaches the store once it returns.
func (e *Engine) Discard(spaceID string) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.discardLocked(spaceID)
}

func (e *Engine) discardLocked(spaceID string) {
	dropped := 0
	for key := range e.pending {
		if key.spaceID == spaceID {
			delete(e.pending, key)
			dropped++
		}
	}
	if dropped > 0 {
		metrics.PendingIncrements.Set(float64(len(e.pending)))
		e.logger.Warn().Str("space_id", spaceID).Int("dropped", dropped).Msg("Discarded unflushed time")
	}
}

// Current returns the tracked space id, or "" when idle.
func (e *Engine) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spaceID
}

// SessionInfo returns a snapshot of the session.
func (e *Engine) SessionInfo() SessionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := len(e.pending)
	for key := range e.inflight {
		if _, ok := e.pending[key]; !ok {
			keys++
		}
	}
	return SessionInfo{
		SpaceID:         e.spaceID,
		SessionDuration: e.sessionDuration,
		IsTracking:      e.spaceID != "",
		StartedAt:       e.startedAt,
		Pending:         keys,
	}
}

// Pending returns unflushed seconds per app for date, counting writes still
// in progress.
func (e *Engine) Pending(date string) map[string]int64 {
	pending, _ := e.pendingSnapshot(date)
	return pending
}

func (e *Engine) pendingSnapshot(date string) (map[string]int64, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]int64)
	for _, buf := range []map[pendingKey]int64{e.pending, e.inflight} {
		for key, seconds := range buf {
			if key.date == date {
				out[key.appName] += seconds
			}
		}
	}
	return out, e.writeSeq
}

// maxStatsAttempts bounds how often WithPending rereads the store while
// flushes keep landing.
const maxStatsAttempts = 5

// WithPending adds unflushed time for date to the totals returned by stored.
// stored is reread until no flush overlapped the read, so each second is
// counted exactly once. It never waits for a flush in progress.
func (e *Engine) WithPending(ctx context.Context, date string, stored func(context.Context) (map[string]int64, error)) (map[string]int64, error) {
	for attempt := 1; ; attempt++ {
		pending, seq := e.pendingSnapshot(date)
		totals, err := stored(ctx)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		settled := seq%2 == 0 && e.writeSeq == seq
		e.mu.Unlock()

		if settled || attempt == maxStatsAttempts {
			if !settled {
				e.logger.Debug().Str("date", date).Msg("Stats read overlapped a flush")
			}
			if totals == nil {
				totals = make(map[string]int64)
			}
			for app, seconds := range pending {
				totals[app] += seconds
			}
			return totals, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Tick samples the focused application once and attributes one tick interval
// to the active space if the application is a member.
func (e *Engine) Tick(ctx context.Context) TickOutcome {
	now := e.clock.Now()

	e.mu.Lock()
	spaceID, generation := e.spaceID, e.generation
	e.mu.Unlock()

	if spaceID == "" {
		e.retry(ctx, now)
		return e.record(TickIdle)
	}

	sp, err := e.spaces.Get(ctx, spaceID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return e.endExternally(ctx, spaceID, generation, true)
	case err != nil:
		e.logger.Warn().Err(err).Str("space_id", spaceID).Msg("Failed to read active space")
		return e.record(TickStale)
	case !sp.IsActive:
		return e.endExternally(ctx, spaceID, generation, false)
	}

	app, err := e.sample(ctx)
	if err != nil {
		e.logger.Debug().Err(err).Msg("Focus sample unavailable")
		e.retry(ctx, now)
		return e.record(TickUnavailable)
	}

	member := ""
	if app != nil {
		member, _ = space.Member(sp.Apps, app.Name)
	}

	e.mu.Lock()
	// A transition while sampling invalidates this tick.
	if e.generation != generation || e.spaceID != spaceID {
		e.mu.Unlock()
		return e.record(TickStale)
	}

	if member == "" {
		e.mu.Unlock()
		e.retry(ctx, now)
		return e.record(TickUnmatched)
	}

	seconds := int64(e.cfg.TickInterval / time.Second)
	key := pendingKey{spaceID: spaceID, appName: member, date: now.Format(storage.DateLayout)}
	e.pending[key] += seconds
	e.sessionDuration += seconds
	metrics.TrackedSeconds.WithLabelValues(spaceID).Add(float64(seconds))
	metrics.PendingIncrements.Set(float64(len(e.pending)))
	due := now.Sub(e.lastFlush) >= e.cfg.FlushInterval
	e.mu.Unlock()

	if due {
		if err := e.Flush(ctx); err != nil {
			e.logger.Error().Err(err).Msg("Flush failed, will retry")
		}
	}

	e.notifier.Notify()
	return e.record(TickCounted)
}

// endExternally ends a session whose space was deleted or deactivated in the
// store behind the registry's back, e.g. by another process. Buffered time of
// a deleted space is dropped instead of written.
func (e *Engine) endExternally(ctx context.Context, spaceID string, generation uint64, deleted bool) TickOutcome {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	if e.generation != generation || e.spaceID != spaceID {
		e.mu.Unlock()
		return e.record(TickStale)
	}
	e.logger.Info().
		Str("space_id", spaceID).
		Bool("deleted", deleted).
		Msg("Active space changed in the store, ending session")
	if deleted {
		e.discardLocked(spaceID)
	}
	batch := e.endLocked()
	e.mu.Unlock()

	if err := e.write(ctx, batch); err != nil {
		e.logger.Error().Err(err).Msg("Flush failed, will retry")
	}
	e.notifier.Notify()
	return e.record(TickEnded)
}

// Flush writes pending increments to the entry store.
func (e *Engine) Flush(ctx context.Context) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	batch := e.takeLocked()
	e.mu.Unlock()
	return e.write(ctx, batch)
}

// retry flushes leftovers from an earlier failure once the flush interval has
// passed.
func (e *Engine) retry(ctx context.Context, now time.Time) {
	e.mu.Lock()
	due := len(e.pending) > 0 && now.Sub(e.lastFlush) >= e.cfg.FlushInterval
	e.mu.Unlock()
	if !due {
		return
	}
	if err := e.Flush(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Retry flush failed")
	}
}

// takeLocked moves pending increments into the in-flight set and returns them.
func (e *Engine) takeLocked() map[pendingKey]int64 {
	e.lastFlush = e.clock.Now()
	if len(e.pending) == 0 {
		return nil
	}
	batch := e.pending
	e.pending = make(map[pendingKey]int64)
	for key, seconds := range batch {
		e.inflight[key] += seconds
	}
	return batch
}

// write stores batch without holding mu. On the first failure that key and
// every unwritten one go back to pending, so nothing is lost or counted twice.
// Callers hold flushMu.
func (e *Engine) write(ctx context.Context, batch map[pendingKey]int64) error {
	if len(batch) == 0 {
		return nil
	}

	var failed error
	for key, seconds := range batch {
		attempted := failed == nil
		if attempted {
			e.mu.Lock()
			e.writeSeq++
			e.mu.Unlock()

			if err := e.entries.Increment(ctx, key.spaceID, key.appName, key.date, seconds); err != nil {
				failed = fmt.Errorf("%w: %s/%s on %s: %v", ErrPersistence, key.spaceID, key.appName, key.date, err)
			} else {
				e.logger.Debug().
					Str("space_id", key.spaceID).
					Str("app", key.appName).
					Str("date", key.date).
					Int64("seconds", seconds).
					Msg("Flushed tracked time")
			}
		}

		// The key leaves inflight in the same step that settles writeSeq.
		e.mu.Lock()
		if attempted {
			e.writeSeq++
		}
		if e.inflight[key] -= seconds; e.inflight[key] <= 0 {
			delete(e.inflight, key)
		}
		if failed != nil {
			e.pending[key] += seconds
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	metrics.PendingIncrements.Set(float64(len(e.pending)))
	e.mu.Unlock()

	if failed != nil {
		metrics.FlushesTotal.WithLabelValues("error").Inc()
		return failed
	}
	metrics.FlushesTotal.WithLabelValues("ok").Inc()
	return nil
}

func (e *Engine) sample(ctx context.Context) (*window.App, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FocusTimeout)
	defer cancel()

	start := time.Now()
	app, err := e.provider.FocusedApplication(ctx)
	metrics.FocusSampleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", window.ErrUnavailable, err)
	}
	return app, nil
}

func (e *Engine) record(outcome TickOutcome) TickOutcome {
	metrics.TicksTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}

// Start begins the ticker loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.stopChan != nil {
		e.mu.Unlock()
		return
	}
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	stop, done := e.stopChan, e.done
	e.mu.Unlock()

	go e.run(stop, done)
	e.logger.Info().
		Dur("tick_interval", e.cfg.TickInterval).
		Dur("flush_interval", e.cfg.FlushInterval).
		Msg("Session engine started")
}

// Stop halts the ticker loop and flushes pending time.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	stop, done := e.stopChan, e.done
	e.stopChan, e.done = nil, nil
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	err := e.Flush(ctx)
	e.logger.Info().Msg("Session engine stopped")
	return err
}

func (e *Engine) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ticker.C:
			e.Tick(ctx)
		case <-stop:
			return
		}
	}
}

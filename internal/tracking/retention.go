package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/flowtrack/internal/clock"
	"github.com/goodtune/flowtrack/internal/metrics"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/rs/zerolog"
)

// RetentionScheduler prunes old entries once a day
type RetentionScheduler struct {
	entries       storage.EntryStore
	retentionDays int
	runTime       time.Time // Time of day to prune (only hour and minute are used)
	clock         clock.Clock
	notifier      *Notifier
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewRetentionScheduler creates a scheduler that keeps retentionDays days of
// entries, pruning at runTime (HH:MM) local time
func NewRetentionScheduler(entries storage.EntryStore, retentionDays int, runTime string, clk clock.Clock, notifier *Notifier, logger zerolog.Logger) (*RetentionScheduler, error) {
	parsedTime, err := time.Parse("15:04", runTime)
	if err != nil {
		return nil, fmt.Errorf("invalid retention time %q: %w", runTime, err)
	}
	if retentionDays < 0 {
		return nil, fmt.Errorf("retention days must not be negative")
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &RetentionScheduler{
		entries:       entries,
		retentionDays: retentionDays,
		runTime:       parsedTime,
		clock:         clk,
		notifier:      notifier,
		logger:        logger.With().Str("component", "retention-scheduler").Logger(),
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the scheduler. It does nothing when retention is disabled.
func (rs *RetentionScheduler) Start() {
	if rs.retentionDays == 0 {
		rs.logger.Debug().Msg("Retention disabled, entries are kept forever")
		return
	}
	go rs.run()
	rs.logger.Info().
		Str("run_time", rs.runTime.Format("15:04")).
		Int("retention_days", rs.retentionDays).
		Msg("Retention scheduler started")
}

// Stop stops the scheduler
func (rs *RetentionScheduler) Stop() {
	select {
	case <-rs.stopChan:
	default:
		close(rs.stopChan)
	}
	rs.logger.Info().Msg("Retention scheduler stopped")
}

func (rs *RetentionScheduler) run() {
	for {
		next := rs.nextRun()
		wait := next.Sub(rs.clock.Now())

		rs.logger.Debug().
			Time("next_run", next).
			Dur("wait_duration", wait).
			Msg("Scheduled next retention prune")

		select {
		case <-time.After(wait):
			if _, err := rs.Prune(context.Background()); err != nil {
				rs.logger.Error().Err(err).Msg("Retention prune failed")
			}
		case <-rs.stopChan:
			return
		}
	}
}

// nextRun returns the next time of day at which to prune
func (rs *RetentionScheduler) nextRun() time.Time {
	now := rs.clock.Now()

	today := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.runTime.Hour(), rs.runTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already passed today's run time, schedule for tomorrow
	if !now.Before(today) {
		return today.AddDate(0, 0, 1)
	}
	return today
}

// Cutoff returns the first date that is kept. Today counts as one of the
// retained days.
func (rs *RetentionScheduler) Cutoff() string {
	now := rs.clock.Now()
	return now.AddDate(0, 0, -(rs.retentionDays - 1)).Format(storage.DateLayout)
}

// Prune deletes entries dated before the cutoff
func (rs *RetentionScheduler) Prune(ctx context.Context) (int, error) {
	if rs.retentionDays == 0 {
		return 0, nil
	}
	cutoff := rs.Cutoff()

	deleted, err := rs.entries.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries before %s: %w", cutoff, err)
	}

	metrics.EntriesPruned.Add(float64(deleted))
	rs.logger.Info().
		Int("entries_deleted", deleted).
		Str("cutoff_date", cutoff).
		Msg("Pruned old entries")

	if deleted > 0 {
		rs.notifier.Notify()
	}
	return deleted, nil
}

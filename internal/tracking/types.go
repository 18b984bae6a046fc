package tracking

import (
	"errors"
	"time"
)

// ErrPersistence wraps failures to write pending time to the entry store.
var ErrPersistence = errors.New("failed to persist tracked time")

const (
	// DefaultTickInterval is the period between focus samples
	DefaultTickInterval = time.Second

	// DefaultFocusTimeout bounds a single focus sample
	DefaultFocusTimeout = 500 * time.Millisecond
)

// Config holds engine timing
type Config struct {
	TickInterval  time.Duration
	FlushInterval time.Duration
	FocusTimeout  time.Duration
}

// SessionInfo is a snapshot of the current session
type SessionInfo struct {
	SpaceID         string    `json:"spaceId,omitempty"`
	SessionDuration int64     `json:"sessionDuration"`
	IsTracking      bool      `json:"isTracking"`
	StartedAt       time.Time `json:"startedAt,omitempty"`
	Pending         int       `json:"pending"`
}

// TickOutcome describes what a single tick did
type TickOutcome string

const (
	TickIdle        TickOutcome = "idle"
	TickCounted     TickOutcome = "counted"
	TickUnmatched   TickOutcome = "unmatched"
	TickUnavailable TickOutcome = "unavailable"
	TickStale       TickOutcome = "stale"
	TickEnded       TickOutcome = "ended" // space deleted or deactivated outside the registry
)

// pendingKey identifies one entry's unflushed increment
type pendingKey struct {
	spaceID string
	appName string
	date    string
}

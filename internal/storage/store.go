package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Spaces() SpaceStore
	Entries() EntryStore
	Settings() SettingsStore
}

// SpaceStore manages tracking spaces.
type SpaceStore interface {
	List(ctx context.Context) ([]TrackingSpace, error)
	Get(ctx context.Context, id string) (*TrackingSpace, error)
	Upsert(ctx context.Context, space TrackingSpace) error
	Delete(ctx context.Context, id string) error
}

// EntryStore manages per-day time entries. Each (space, app, date) key has at
// most one entry; Increment creates it at zero when absent.
type EntryStore interface {
	Increment(ctx context.Context, spaceID, appName, date string, seconds int64) error
	Get(ctx context.Context, spaceID, appName, date string) (*TimeEntry, error)
	Query(ctx context.Context, filter EntryFilter) ([]TimeEntry, error)
	DeleteBySpace(ctx context.Context, spaceID string) (int, error)
	DeleteBefore(ctx context.Context, cutoffDate string) (int, error)
}

// SettingsStore persists the advisory application settings.
type SettingsStore interface {
	Load(ctx context.Context) (AppSettings, error)
	Save(ctx context.Context, settings AppSettings) error
}

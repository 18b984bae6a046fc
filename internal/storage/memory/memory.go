// Package memory provides an in-process storage.Store. Reads return copies so
// callers never observe a value that is being modified.
package memory

import (
	"context"
	"sync"

	"github.com/goodtune/flowtrack/internal/storage"
)

// Store implements storage.Store in memory.
type Store struct {
	mu       sync.RWMutex
	spaces   map[string]storage.TrackingSpace
	entries  map[string]storage.TimeEntry
	settings *storage.AppSettings
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		spaces:  make(map[string]storage.TrackingSpace),
		entries: make(map[string]storage.TimeEntry),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Spaces returns the space store.
func (s *Store) Spaces() storage.SpaceStore { return (*spaceStore)(s) }

// Entries returns the entry store.
func (s *Store) Entries() storage.EntryStore { return (*entryStore)(s) }

// Settings returns the settings store.
func (s *Store) Settings() storage.SettingsStore { return (*settingsStore)(s) }

type spaceStore Store

func (s *spaceStore) List(ctx context.Context) ([]storage.TrackingSpace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	spaces := make([]storage.TrackingSpace, 0, len(s.spaces))
	for _, space := range s.spaces {
		spaces = append(spaces, space.Clone())
	}
	storage.SortSpaces(spaces)
	return spaces, nil
}

func (s *spaceStore) Get(ctx context.Context, id string) (*storage.TrackingSpace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	space, ok := s.spaces[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := space.Clone()
	return &out, nil
}

func (s *spaceStore) Upsert(ctx context.Context, space storage.TrackingSpace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spaces[space.ID] = space.Clone()
	return nil
}

func (s *spaceStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.spaces[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.spaces, id)
	return nil
}

type entryStore Store

func (s *entryStore) Increment(ctx context.Context, spaceID, appName, date string, seconds int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.EntryKey(spaceID, appName, date)
	entry, ok := s.entries[key]
	if !ok {
		entry = storage.TimeEntry{SpaceID: spaceID, AppName: appName, Date: date}
	}
	entry.Duration += seconds
	s.entries[key] = entry
	return nil
}

func (s *entryStore) Get(ctx context.Context, spaceID, appName, date string) (*storage.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[storage.EntryKey(spaceID, appName, date)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &entry, nil
}

func (s *entryStore) Query(ctx context.Context, filter storage.EntryFilter) ([]storage.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]storage.TimeEntry, 0)
	for _, entry := range s.entries {
		if filter.Match(entry) {
			entries = append(entries, entry)
		}
	}
	storage.SortEntries(entries)
	return entries, nil
}

func (s *entryStore) DeleteBySpace(ctx context.Context, spaceID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, entry := range s.entries {
		if entry.SpaceID == spaceID {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *entryStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, entry := range s.entries {
		if entry.Date < cutoffDate {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

type settingsStore Store

func (s *settingsStore) Load(ctx context.Context) (storage.AppSettings, error) {
	if err := ctx.Err(); err != nil {
		return storage.AppSettings{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return storage.DefaultSettings(), nil
	}
	out := *s.settings
	out.MutedApps = append([]string{}, s.settings.MutedApps...)
	return out, nil
}

func (s *settingsStore) Save(ctx context.Context, settings storage.AppSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := settings
	saved.MutedApps = append([]string{}, settings.MutedApps...)
	s.settings = &saved
	return nil
}

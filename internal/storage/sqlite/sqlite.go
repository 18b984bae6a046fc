// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goodtune/flowtrack/internal/storage"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

const settingsKey = "app_settings"

// Store persists spaces, entries and settings in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := storage.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time keeps increments serialised.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Spaces() storage.SpaceStore { return (*spaceStore)(s) }

func (s *Store) Entries() storage.EntryStore { return (*entryStore)(s) }

func (s *Store) Settings() storage.SettingsStore { return (*settingsStore)(s) }

type spaceStore Store

func (s *spaceStore) List(ctx context.Context) ([]storage.TrackingSpace, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, apps, is_active, color, created_at FROM spaces ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	spaces := make([]storage.TrackingSpace, 0)
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, space)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spaces: %w", err)
	}
	return spaces, nil
}

func (s *spaceStore) Get(ctx context.Context, id string) (*storage.TrackingSpace, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, apps, is_active, color, created_at FROM spaces WHERE id = ?`, id)
	space, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &space, nil
}

func (s *spaceStore) Upsert(ctx context.Context, space storage.TrackingSpace) error {
	apps := space.Apps
	if apps == nil {
		apps = []string{}
	}
	encoded, err := json.Marshal(apps)
	if err != nil {
		return fmt.Errorf("encode apps: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO spaces (id, name, apps, is_active, color, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   apps = excluded.apps,
		   is_active = excluded.is_active,
		   color = excluded.color,
		   created_at = excluded.created_at`,
		space.ID, space.Name, string(encoded), space.IsActive, space.Color, space.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert space: %w", err)
	}
	return nil
}

func (s *spaceStore) Delete(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete space: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSpace(row scanner) (storage.TrackingSpace, error) {
	var (
		space     storage.TrackingSpace
		apps      string
		createdAt int64
	)
	if err := row.Scan(&space.ID, &space.Name, &apps, &space.IsActive, &space.Color, &createdAt); err != nil {
		return storage.TrackingSpace{}, err
	}
	space.Apps = []string{}
	if err := json.Unmarshal([]byte(apps), &space.Apps); err != nil {
		return storage.TrackingSpace{}, fmt.Errorf("decode apps for space %s: %w", space.ID, err)
	}
	space.CreatedAt = time.Unix(0, createdAt).UTC()
	return space, nil
}

type entryStore Store

func (s *entryStore) Increment(ctx context.Context, spaceID, appName, date string, seconds int64) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO time_entries (space_id, app_name, date, duration)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(space_id, app_name, date) DO UPDATE SET
		   duration = duration + excluded.duration`,
		spaceID, appName, date, seconds,
	)
	if err != nil {
		return fmt.Errorf("increment entry: %w", err)
	}
	return nil
}

func (s *entryStore) Get(ctx context.Context, spaceID, appName, date string) (*storage.TimeEntry, error) {
	entry := storage.TimeEntry{SpaceID: spaceID, AppName: appName, Date: date}
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT duration FROM time_entries WHERE space_id = ? AND app_name = ? AND date = ?`,
		spaceID, appName, date,
	).Scan(&entry.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &entry, nil
}

func (s *entryStore) Query(ctx context.Context, filter storage.EntryFilter) ([]storage.TimeEntry, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.SpaceID != "" {
		clauses = append(clauses, "space_id = ?")
		args = append(args, filter.SpaceID)
	}
	if filter.DateFrom != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, filter.DateTo)
	}

	query := `SELECT space_id, app_name, date, duration FROM time_entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date, space_id, app_name"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]storage.TimeEntry, 0)
	for rows.Next() {
		var entry storage.TimeEntry
		if err := rows.Scan(&entry.SpaceID, &entry.AppName, &entry.Date, &entry.Duration); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func (s *entryStore) DeleteBySpace(ctx context.Context, spaceID string) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM time_entries WHERE space_id = ?`, spaceID)
	if err != nil {
		return 0, fmt.Errorf("delete entries by space: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *entryStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM time_entries WHERE date < ?`, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("delete entries before %s: %w", cutoffDate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type settingsStore Store

func (s *settingsStore) Load(ctx context.Context) (storage.AppSettings, error) {
	var raw string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.DefaultSettings(), nil
	}
	if err != nil {
		return storage.AppSettings{}, fmt.Errorf("load settings: %w", err)
	}
	settings := storage.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return storage.AppSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	if settings.MutedApps == nil {
		settings.MutedApps = []string{}
	}
	return settings, nil
}

func (s *settingsStore) Save(ctx context.Context, settings storage.AppSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingsKey, string(data),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

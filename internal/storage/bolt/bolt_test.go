package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/flowtrack/internal/storage"
)

func TestSpaceStoreListOrdered(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	spaces := []storage.TrackingSpace{
		{ID: "zzz", Name: "Work", Apps: []string{"Code"}, CreatedAt: base},
		{ID: "aaa", Name: "Personal", CreatedAt: base.Add(time.Minute)},
	}
	for _, space := range spaces {
		if err := store.Spaces().Upsert(context.Background(), space); err != nil {
			t.Fatalf("upsert space: %v", err)
		}
	}

	listed, err := store.Spaces().List(context.Background())
	if err != nil {
		t.Fatalf("list spaces: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 spaces, got %d", len(listed))
	}
	if listed[0].Name != "Work" || listed[1].Name != "Personal" {
		t.Fatalf("expected creation order, got %q then %q", listed[0].Name, listed[1].Name)
	}
	if listed[1].Apps == nil {
		t.Fatal("expected empty apps slice, got nil")
	}

	if err := store.Spaces().Delete(context.Background(), "zzz"); err != nil {
		t.Fatalf("delete space: %v", err)
	}
	if _, err := store.Spaces().Get(context.Background(), "zzz"); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEntryStoreIncrement(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	entries := store.Entries()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := entries.Increment(ctx, "space-a", "Code", "2024-01-02", 20); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	entry, err := entries.Get(ctx, "space-a", "Code", "2024-01-02")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Duration != 60 {
		t.Fatalf("expected duration 60, got %d", entry.Duration)
	}

	all, err := entries.Query(ctx, storage.EntryFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single entry per key, got %d", len(all))
	}
}

func TestEntryStoreQueryFilters(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	entries := store.Entries()
	ctx := context.Background()

	seed := []storage.TimeEntry{
		{SpaceID: "space-a", AppName: "Code", Date: "2024-01-01", Duration: 10},
		{SpaceID: "space-a", AppName: "Code", Date: "2024-01-02", Duration: 20},
		{SpaceID: "space-b", AppName: "Chrome", Date: "2024-01-02", Duration: 30},
		{SpaceID: "space-a", AppName: "Slack", Date: "2024-01-03", Duration: 40},
	}
	for _, e := range seed {
		if err := entries.Increment(ctx, e.SpaceID, e.AppName, e.Date, e.Duration); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter storage.EntryFilter
		want   int
	}{
		{"unrestricted", storage.EntryFilter{}, 4},
		{"by space", storage.EntryFilter{SpaceID: "space-a"}, 3},
		{"from", storage.EntryFilter{DateFrom: "2024-01-02"}, 3},
		{"to", storage.EntryFilter{DateTo: "2024-01-02"}, 3},
		{"single day", storage.EntryFilter{DateFrom: "2024-01-02", DateTo: "2024-01-02"}, 2},
		{"space and range", storage.EntryFilter{SpaceID: "space-a", DateFrom: "2024-01-02", DateTo: "2024-01-03"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := entries.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Query(%+v) returned %d entries, want %d", tt.filter, len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].Date > got[i].Date {
					t.Errorf("entries not sorted by date: %s before %s", got[i-1].Date, got[i].Date)
				}
			}
		})
	}
}

func TestEntryStoreDeleteBySpace(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	entries := store.Entries()
	ctx := context.Background()

	_ = entries.Increment(ctx, "space-a", "Code", "2024-01-01", 10)
	_ = entries.Increment(ctx, "space-a", "Code", "2024-01-02", 10)
	_ = entries.Increment(ctx, "space-b", "Code", "2024-01-02", 10)

	deleted, err := entries.DeleteBySpace(ctx, "space-a")
	if err != nil {
		t.Fatalf("delete by space: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted entries, got %d", deleted)
	}

	remaining, err := entries.Query(ctx, storage.EntryFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SpaceID != "space-b" {
		t.Fatalf("expected only space-b entry to remain, got %+v", remaining)
	}

	// A fresh increment after the cascade starts from zero.
	if err := entries.Increment(ctx, "space-a", "Code", "2024-01-02", 5); err != nil {
		t.Fatalf("increment: %v", err)
	}
	entry, err := entries.Get(ctx, "space-a", "Code", "2024-01-02")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Duration != 5 {
		t.Fatalf("expected duration 5, got %d", entry.Duration)
	}
}

func TestEntryStoreDeleteBefore(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	entries := store.Entries()
	ctx := context.Background()

	_ = entries.Increment(ctx, "space-a", "Code", "2024-01-01", 10)
	_ = entries.Increment(ctx, "space-b", "Code", "2024-01-01", 10)
	_ = entries.Increment(ctx, "space-a", "Code", "2024-01-03", 10)

	deleted, err := entries.DeleteBefore(ctx, "2024-01-02")
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted entries, got %d", deleted)
	}

	remaining, _ := entries.Query(ctx, storage.EntryFilter{})
	if len(remaining) != 1 || remaining[0].Date != "2024-01-03" {
		t.Fatalf("unexpected remaining entries: %+v", remaining)
	}
}

func TestSettingsStoreDefaults(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	settings, err := store.Settings().Load(ctx)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.EnableDND || len(settings.MutedApps) != 0 {
		t.Fatalf("expected default settings, got %+v", settings)
	}

	want := storage.AppSettings{EnableDND: true, MutedApps: []string{"Slack"}}
	if err := store.Settings().Save(ctx, want); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	got, err := store.Settings().Load(ctx)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if !got.EnableDND || len(got.MutedApps) != 1 || got.MutedApps[0] != "Slack" {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowtrack.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

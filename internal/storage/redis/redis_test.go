package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/flowtrack/internal/config"
	"github.com/goodtune/flowtrack/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays zero
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
		KeyPrefix:    "test",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestSpaceStore_UpsertAndGet(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	space := storage.TrackingSpace{
		ID:        "space-1",
		Name:      "Work",
		Apps:      []string{"Code", "Slack"},
		IsActive:  true,
		Color:     "#3b82f6",
		CreatedAt: created,
	}

	if err := store.Spaces().Upsert(ctx, space); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Spaces().Get(ctx, "space-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Work" || !got.IsActive || got.Color != "#3b82f6" {
		t.Errorf("Unexpected space: %+v", got)
	}
	if len(got.Apps) != 2 || got.Apps[0] != "Code" || got.Apps[1] != "Slack" {
		t.Errorf("Expected apps [Code Slack], got %v", got.Apps)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("Expected CreatedAt %v, got %v", created, got.CreatedAt)
	}

	if !mr.Exists("test:space:space-1") {
		t.Error("Expected space hash under the configured prefix")
	}
	if ok, _ := mr.SIsMember("test:spaces", "space-1"); !ok {
		t.Error("Expected space id in membership set")
	}
}

func TestSpaceStore_UpsertReplacesApps(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	space := storage.TrackingSpace{ID: "s", Name: "Work", Apps: []string{"Code"}}
	if err := store.Spaces().Upsert(ctx, space); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	space.Apps = nil
	space.Name = "Deep Work"
	if err := store.Spaces().Upsert(ctx, space); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Spaces().Get(ctx, "s")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Deep Work" {
		t.Errorf("Expected renamed space, got %s", got.Name)
	}
	if got.Apps == nil || len(got.Apps) != 0 {
		t.Errorf("Expected empty non-nil apps, got %#v", got.Apps)
	}
}

func TestSpaceStore_ListAndDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		space := storage.TrackingSpace{ID: id, Name: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Spaces().Upsert(ctx, space); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	spaces, err := store.Spaces().List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(spaces) != 3 || spaces[0].ID != "c" || spaces[1].ID != "a" || spaces[2].ID != "b" {
		t.Fatalf("Expected creation order [c a b], got %+v", spaces)
	}

	if err := store.Spaces().Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Spaces().Get(ctx, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	spaces, _ = store.Spaces().List(ctx)
	if len(spaces) != 2 {
		t.Errorf("Expected 2 spaces after delete, got %d", len(spaces))
	}
}

func TestEntryStore_Increment(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	entries := store.Entries()

	for i := 0; i < 3; i++ {
		if err := entries.Increment(ctx, "s1", "Code", "2024-03-10", 5); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	entry, err := entries.Get(ctx, "s1", "Code", "2024-03-10")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Duration != 15 {
		t.Errorf("Expected duration 15, got %d", entry.Duration)
	}

	all, err := entries.Query(ctx, storage.EntryFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected a single entry for the unique key, got %d", len(all))
	}
}

func TestEntryStore_Query(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	entries := store.Entries()

	seed := []storage.TimeEntry{
		{SpaceID: "s1", AppName: "Code", Date: "2024-03-08", Duration: 10},
		{SpaceID: "s1", AppName: "Slack", Date: "2024-03-09", Duration: 20},
		{SpaceID: "s2", AppName: "Figma", Date: "2024-03-09", Duration: 30},
		{SpaceID: "s1", AppName: "Code", Date: "2024-03-10", Duration: 40},
	}
	for _, e := range seed {
		if err := entries.Increment(ctx, e.SpaceID, e.AppName, e.Date, e.Duration); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter storage.EntryFilter
		want   int
	}{
		{"all", storage.EntryFilter{}, 4},
		{"space only", storage.EntryFilter{SpaceID: "s1"}, 3},
		{"date range", storage.EntryFilter{DateFrom: "2024-03-09", DateTo: "2024-03-09"}, 2},
		{"open ended from", storage.EntryFilter{DateFrom: "2024-03-09"}, 3},
		{"open ended to", storage.EntryFilter{DateTo: "2024-03-08"}, 1},
		{"space and range", storage.EntryFilter{SpaceID: "s1", DateFrom: "2024-03-09", DateTo: "2024-03-10"}, 2},
		{"empty window", storage.EntryFilter{DateFrom: "2024-04-01", DateTo: "2024-04-30"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := entries.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d entries, got %d: %+v", tt.want, len(got), got)
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].Date > got[i].Date {
					t.Errorf("Entries not sorted by date: %+v", got)
				}
			}
		})
	}
}

func TestEntryStore_DeleteBySpace(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()
	entries := store.Entries()

	_ = entries.Increment(ctx, "s1", "Code", "2024-03-09", 10)
	_ = entries.Increment(ctx, "s1", "Code", "2024-03-10", 10)
	_ = entries.Increment(ctx, "s2", "Code", "2024-03-10", 10)

	deleted, err := entries.DeleteBySpace(ctx, "s1")
	if err != nil {
		t.Fatalf("DeleteBySpace failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	remaining, _ := entries.Query(ctx, storage.EntryFilter{})
	if len(remaining) != 1 || remaining[0].SpaceID != "s2" {
		t.Errorf("Expected only s2 entry to remain, got %+v", remaining)
	}
	if mr.Exists("test:entries:space:s1") {
		t.Error("Expected space index to be removed")
	}
}

func TestEntryStore_DeleteBefore(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()
	entries := store.Entries()

	_ = entries.Increment(ctx, "s1", "Code", "2024-01-01", 10)
	_ = entries.Increment(ctx, "s1", "Slack", "2024-01-15", 10)
	_ = entries.Increment(ctx, "s1", "Code", "2024-02-01", 10)

	deleted, err := entries.DeleteBefore(ctx, "2024-02-01")
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	remaining, _ := entries.Query(ctx, storage.EntryFilter{})
	if len(remaining) != 1 || remaining[0].Date != "2024-02-01" {
		t.Errorf("Expected only the cutoff-day entry, got %+v", remaining)
	}
	if mr.Exists("test:entries:date:2024-01-01") {
		t.Error("Expected date index to be removed")
	}
	members, _ := mr.SMembers("test:entries:space:s1")
	if len(members) != 1 {
		t.Errorf("Expected space index pruned to 1 member, got %v", members)
	}
}

func TestSettingsStore(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	settings, err := store.Settings().Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.EnableDND || len(settings.MutedApps) != 0 {
		t.Errorf("Expected defaults, got %+v", settings)
	}

	want := storage.AppSettings{EnableDND: true, MutedApps: []string{"Slack"}}
	if err := store.Settings().Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Settings().Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !got.EnableDND || len(got.MutedApps) != 1 || got.MutedApps[0] != "Slack" {
		t.Errorf("Expected saved settings, got %+v", got)
	}
}

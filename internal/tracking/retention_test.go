package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/goodtune/flowtrack/internal/clock"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/goodtune/flowtrack/internal/storage/memory"
	"github.com/rs/zerolog"
)

func TestRetentionNextRun(t *testing.T) {
	clk := clock.NewTestClock(time.Date(2024, 3, 10, 2, 0, 0, 0, time.Local))
	rs, err := NewRetentionScheduler(memory.New().Entries(), 30, "03:00", clk, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetentionScheduler failed: %v", err)
	}

	if got, want := rs.nextRun(), time.Date(2024, 3, 10, 3, 0, 0, 0, time.Local); !got.Equal(want) {
		t.Errorf("nextRun = %v, want %v", got, want)
	}

	clk.Set(time.Date(2024, 3, 10, 3, 0, 0, 0, time.Local))
	if got, want := rs.nextRun(), time.Date(2024, 3, 11, 3, 0, 0, 0, time.Local); !got.Equal(want) {
		t.Errorf("nextRun at run time = %v, want %v", got, want)
	}
}

func TestRetentionPrune(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for _, date := range []string{"2024-03-01", "2024-03-03", "2024-03-04", "2024-03-10"} {
		_ = store.Entries().Increment(ctx, "s", "Code", date, 60)
	}

	clk := clock.NewTestClock(time.Date(2024, 3, 10, 3, 0, 0, 0, time.Local))
	notifier := NewNotifier()
	ch, cancel := notifier.Subscribe()
	defer cancel()

	rs, err := NewRetentionScheduler(store.Entries(), 7, "03:00", clk, notifier, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetentionScheduler failed: %v", err)
	}
	if got := rs.Cutoff(); got != "2024-03-04" {
		t.Fatalf("Cutoff = %s, want 2024-03-04", got)
	}

	deleted, err := rs.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 entries pruned, got %d", deleted)
	}
	left, _ := store.Entries().Query(ctx, storage.EntryFilter{})
	if len(left) != 2 || left[0].Date != "2024-03-04" {
		t.Errorf("Unexpected remaining entries %+v", left)
	}
	select {
	case <-ch:
	default:
		t.Error("Expected a change notification after pruning")
	}
}

func TestRetentionDisabled(t *testing.T) {
	store := memory.New()
	_ = store.Entries().Increment(context.Background(), "s", "Code", "2000-01-01", 60)

	rs, err := NewRetentionScheduler(store.Entries(), 0, "03:00", nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetentionScheduler failed: %v", err)
	}
	rs.Start()
	rs.Stop()

	if n, _ := rs.Prune(context.Background()); n != 0 {
		t.Errorf("Expected nothing pruned when disabled, got %d", n)
	}
}

func TestRetentionInvalidTime(t *testing.T) {
	if _, err := NewRetentionScheduler(memory.New().Entries(), 7, "25:99", nil, nil, zerolog.Nop()); err == nil {
		t.Fatal("Expected error for invalid run time")
	}
}

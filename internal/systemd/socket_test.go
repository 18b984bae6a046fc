package systemd

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestGetListeners_NotActivated(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	listeners, err := GetListeners()
	if err != nil {
		t.Fatalf("GetListeners failed: %v", err)
	}
	if listeners.Activated {
		t.Error("Expected no socket activation")
	}
	if listeners.API != nil || listeners.Metrics != nil {
		t.Error("Expected nil listeners")
	}
}

func TestNotify_NoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	for name, notify := range map[string]func() error{
		"ready":    NotifyReady,
		"stopping": NotifyStopping,
		"watchdog": NotifyWatchdog,
	} {
		if err := notify(); err != nil {
			t.Errorf("%s: expected nil error outside systemd, got %v", name, err)
		}
	}
}

func TestWatchdog_DisabledReturns(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")

	done := make(chan struct{})
	go func() {
		Watchdog(make(chan struct{}), zerolog.Nop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watchdog should return when disabled")
	}
}

func TestRunWatchdog_PingsUntilStopped(t *testing.T) {
	var pings atomic.Int32
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		runWatchdog(5*time.Millisecond, stop, func() error {
			if pings.Add(1) == 2 {
				return errors.New("socket gone")
			}
			return nil
		}, zerolog.Nop())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pings.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(stop)
	<-done

	if pings.Load() < 3 {
		t.Errorf("Expected at least 3 pings, got %d", pings.Load())
	}
}

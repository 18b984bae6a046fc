package window

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestExec(outputs map[string]string, calls map[string]int) *Exec {
	e := NewExec(ExecConfig{
		FocusCommand:      "focus",
		RunningCommand:    "running",
		InstalledCommand:  "installed",
		InstalledCacheTTL: time.Minute,
	}, zerolog.Nop())
	e.run = func(_ context.Context, command string) ([]byte, error) {
		calls[command]++
		out, ok := outputs[command]
		if !ok {
			return nil, errors.New("exit status 1")
		}
		return []byte(out), nil
	}
	return e
}

func TestExecFocusedApplication(t *testing.T) {
	calls := map[string]int{}
	e := newTestExec(map[string]string{"focus": "Code\nignored\n"}, calls)

	app, err := e.FocusedApplication(context.Background())
	if err != nil {
		t.Fatalf("FocusedApplication failed: %v", err)
	}
	if app == nil || app.Name != "Code" {
		t.Fatalf("Expected Code, got %+v", app)
	}
}

func TestExecFocusedApplicationEmpty(t *testing.T) {
	e := newTestExec(map[string]string{"focus": "  \n"}, map[string]int{})
	app, err := e.FocusedApplication(context.Background())
	if err != nil || app != nil {
		t.Fatalf("Expected no focused app, got %+v, %v", app, err)
	}
}

func TestExecFocusedApplicationUnavailable(t *testing.T) {
	e := newTestExec(map[string]string{}, map[string]int{})
	_, err := e.FocusedApplication(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
}

func TestExecRunningApplications(t *testing.T) {
	out := "  101 firefox\n 202 /usr/bin/code\n 303 Firefox\nslack\n\n"
	e := newTestExec(map[string]string{"running": out}, map[string]int{})

	apps, err := e.RunningApplications(context.Background())
	if err != nil {
		t.Fatalf("RunningApplications failed: %v", err)
	}
	want := []App{{Name: "code", ProcessID: 202}, {Name: "firefox", ProcessID: 101}, {Name: "slack"}}
	if len(apps) != len(want) {
		t.Fatalf("Expected %d apps, got %+v", len(want), apps)
	}
	for i := range want {
		if apps[i] != want[i] {
			t.Errorf("apps[%d] = %+v, want %+v", i, apps[i], want[i])
		}
	}
}

func TestExecInstalledApplicationsCached(t *testing.T) {
	calls := map[string]int{}
	out := "code.desktop\n/Applications/Safari.app\nfirefox.desktop\nCode.desktop\n"
	e := newTestExec(map[string]string{"installed": out}, calls)

	for i := 0; i < 3; i++ {
		apps, err := e.InstalledApplications(context.Background())
		if err != nil {
			t.Fatalf("InstalledApplications failed: %v", err)
		}
		if len(apps) != 3 {
			t.Fatalf("Expected 3 apps, got %+v", apps)
		}
		if apps[0].Name != "code" || apps[2].Name != "Safari" || apps[2].Path != "/Applications/Safari.app" {
			t.Errorf("Unexpected apps %+v", apps)
		}
	}
	if calls["installed"] != 1 {
		t.Errorf("Expected installed command to run once, ran %d times", calls["installed"])
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic("Code")
	ctx := context.Background()

	app, _ := s.FocusedApplication(ctx)
	if app == nil || app.Name != "Code" {
		t.Fatalf("Expected Code, got %+v", app)
	}

	s.SetFocused("")
	if app, _ := s.FocusedApplication(ctx); app != nil {
		t.Errorf("Expected nothing focused, got %+v", app)
	}

	s.SetError(ErrUnavailable)
	if _, err := s.FocusedApplication(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

package window

import (
	"context"
	"sync"
)

// Static is a Provider with fixed answers. The focused app can be changed at
// runtime, which makes it useful for tests and demos.
type Static struct {
	mu        sync.RWMutex
	focused   string
	err       error
	Installed []App
	Running   []App
}

// NewStatic returns a Static provider reporting focused as the focused app.
func NewStatic(focused string) *Static {
	return &Static{focused: focused}
}

// SetFocused changes the focused application. An empty name means nothing has focus.
func (s *Static) SetFocused(name string) {
	s.mu.Lock()
	s.focused = name
	s.mu.Unlock()
}

// SetError makes FocusedApplication fail with err until cleared with nil.
func (s *Static) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Static) FocusedApplication(ctx context.Context) (*App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.focused == "" {
		return nil, nil
	}
	return &App{Name: s.focused}, nil
}

func (s *Static) InstalledApplications(context.Context) ([]App, error) {
	return append([]App{}, s.Installed...), nil
}

func (s *Static) RunningApplications(context.Context) ([]App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	running := append([]App{}, s.Running...)
	if s.focused != "" && len(running) == 0 {
		running = append(running, App{Name: s.focused})
	}
	return running, nil
}

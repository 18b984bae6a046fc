// Package window discovers the focused, running and installed applications.
package window

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the platform cannot answer a query.
var ErrUnavailable = errors.New("window information unavailable")

// App describes an application as seen by the desktop.
type App struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	ProcessID uint64 `json:"processId,omitempty"`
}

// Provider answers questions about the desktop. FocusedApplication returns
// (nil, nil) when no application has focus.
type Provider interface {
	FocusedApplication(ctx context.Context) (*App, error)
	InstalledApplications(ctx context.Context) ([]App, error)
	RunningApplications(ctx context.Context) ([]App, error)
}

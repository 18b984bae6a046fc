// Package space manages tracking spaces and keeps at most one of them active.
package space

import (
	"context"
	"errors"
	"strings"

	"github.com/goodtune/flowtrack/internal/storage"
)

// ErrValidation is returned for malformed input such as an empty name.
var ErrValidation = errors.New("validation error")

// Palette lists the colours offered for new spaces. The first is the default.
var Palette = []string{
	"#3b82f6",
	"#8b5cf6",
	"#ec4899",
	"#f97316",
	"#22c55e",
	"#06b6d4",
	"#eab308",
	"#ef4444",
}

// DefaultColor is used when a space is created without a colour.
var DefaultColor = Palette[0]

// SessionController is the tracking side of an activation. The registry calls
// it while holding its own lock, so implementations must not call back into
// the registry's mutating methods.
type SessionController interface {
	// Begin starts a fresh session for space, ending any other one first.
	Begin(ctx context.Context, space storage.TrackingSpace) error
	// End stops the current session, flushing its pending time.
	End(ctx context.Context) error
	// Current returns the id of the tracked space, or "" when idle.
	Current() string
	// Discard drops buffered time of a space that no longer exists.
	Discard(spaceID string)
}

// Notifier receives a signal whenever the set of spaces changes.
type Notifier interface {
	Notify()
}

// Canonical returns the comparison form of an application name.
func Canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Member returns the registered member of apps matching name, compared in
// canonical form.
func Member(apps []string, name string) (string, bool) {
	want := Canonical(name)
	if want == "" {
		return "", false
	}
	for _, app := range apps {
		if Canonical(app) == want {
			return app, true
		}
	}
	return "", false
}

// NormalizeApps trims names and drops empties and canonical duplicates,
// keeping the first spelling seen.
func NormalizeApps(apps []string) []string {
	out := make([]string, 0, len(apps))
	seen := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		trimmed := strings.TrimSpace(app)
		if trimmed == "" {
			continue
		}
		key := Canonical(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

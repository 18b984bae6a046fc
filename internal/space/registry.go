package space

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goodtune/flowtrack/internal/clock"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry owns the collection of spaces. All mutations are serialised.
type Registry struct {
	spaces   storage.SpaceStore
	entries  storage.EntryStore
	session  SessionController
	notifier Notifier
	clock    clock.Clock
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store storage.Store, clk clock.Clock, logger zerolog.Logger) *Registry {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Registry{
		spaces:  store.Spaces(),
		entries: store.Entries(),
		clock:   clk,
		logger:  logger.With().Str("component", "space-registry").Logger(),
	}
}

// SetSessionController wires the session engine. Without one, activation only
// flips the persisted flag.
func (r *Registry) SetSessionController(c SessionController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = c
}

// SetNotifier wires the change notifier.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = n
}

// List returns every space in creation order.
func (r *Registry) List(ctx context.Context) ([]storage.TrackingSpace, error) {
	spaces, err := r.spaces.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	return spaces, nil
}

// Get returns a single space.
func (r *Registry) Get(ctx context.Context, id string) (*storage.TrackingSpace, error) {
	space, err := r.spaces.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("space %q: %w", id, err)
	}
	return space, nil
}

// Create adds a new inactive space with no apps.
func (r *Registry) Create(ctx context.Context, name, color string) (*storage.TrackingSpace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: space name must not be empty", ErrValidation)
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = DefaultColor
	}

	space := storage.TrackingSpace{
		ID:        uuid.NewString(),
		Name:      name,
		Apps:      []string{},
		IsActive:  false,
		Color:     color,
		CreatedAt: r.clock.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.spaces.Upsert(ctx, space); err != nil {
		return nil, fmt.Errorf("failed to save space: %w", err)
	}

	r.logger.Info().Str("space_id", space.ID).Str("name", space.Name).Msg("Created space")
	r.notifyLocked()
	return &space, nil
}

// Update replaces the name, apps and colour of an existing space. The activity
// flag is owned by SetActive and is kept as stored.
func (r *Registry) Update(ctx context.Context, space storage.TrackingSpace) ([]storage.TrackingSpace, error) {
	name := strings.TrimSpace(space.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: space name must not be empty", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.spaces.Get(ctx, space.ID)
	if err != nil {
		return nil, fmt.Errorf("space %q: %w", space.ID, err)
	}

	updated := existing.Clone()
	updated.Name = name
	updated.Apps = NormalizeApps(space.Apps)
	if color := strings.TrimSpace(space.Color); color != "" {
		updated.Color = color
	}

	if err := r.spaces.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save space: %w", err)
	}

	r.logger.Debug().
		Str("space_id", updated.ID).
		Int("apps", len(updated.Apps)).
		Msg("Updated space")

	r.notifyLocked()
	return r.List(ctx)
}

// Delete ends the space's session if it is being tracked, removes its entries
// and then the space itself.
func (r *Registry) Delete(ctx context.Context, id string) ([]storage.TrackingSpace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.spaces.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("space %q: %w", id, err)
	}

	if r.session != nil {
		if r.session.Current() == id {
			if err := r.session.End(ctx); err != nil {
				r.logger.Warn().Err(err).Str("space_id", id).Msg("Failed to flush session of deleted space")
			}
		}
		// Unflushed time must not be written back after the cascade.
		r.session.Discard(id)
	}

	deleted, err := r.entries.DeleteBySpace(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete entries of space %q: %w", id, err)
	}
	if err := r.spaces.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to delete space %q: %w", id, err)
	}

	r.logger.Info().Str("space_id", id).Int("entries_deleted", deleted).Msg("Deleted space")
	r.notifyLocked()
	return r.List(ctx)
}

// SetActive activates or deactivates a space. Activating a space that is
// already being tracked changes nothing.
func (r *Registry) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setActiveLocked(ctx, id, active)
}

// Toggle flips the activity flag of a space and returns the new state.
func (r *Registry) Toggle(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	space, err := r.spaces.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("space %q: %w", id, err)
	}
	return r.setActiveLocked(ctx, id, !space.IsActive)
}

func (r *Registry) setActiveLocked(ctx context.Context, id string, active bool) (bool, error) {
	target, err := r.spaces.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("space %q: %w", id, err)
	}

	if !active {
		if r.session != nil && r.session.Current() == id {
			if err := r.session.End(ctx); err != nil {
				r.logger.Warn().Err(err).Str("space_id", id).Msg("Session ended with unflushed time")
			}
		}
		if target.IsActive {
			target.IsActive = false
			if err := r.spaces.Upsert(ctx, *target); err != nil {
				return false, fmt.Errorf("failed to save space: %w", err)
			}
			r.logger.Info().Str("space_id", id).Msg("Deactivated space")
			r.notifyLocked()
		}
		return false, nil
	}

	tracking := r.session == nil || r.session.Current() == id
	if target.IsActive && tracking {
		return true, nil
	}

	if r.session != nil && r.session.Current() != "" {
		if err := r.session.End(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("Previous session ended with unflushed time")
		}
	}

	if err := r.clearActiveLocked(ctx, id); err != nil {
		return false, err
	}

	target.IsActive = true
	if err := r.spaces.Upsert(ctx, *target); err != nil {
		return false, fmt.Errorf("failed to save space: %w", err)
	}

	if r.session != nil {
		if err := r.session.Begin(ctx, *target); err != nil {
			return false, fmt.Errorf("failed to begin session: %w", err)
		}
	}

	r.logger.Info().Str("space_id", id).Str("name", target.Name).Msg("Activated space")
	r.notifyLocked()
	return true, nil
}

// StopAll deactivates every space and ends the session.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil && r.session.Current() != "" {
		if err := r.session.End(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("Session ended with unflushed time")
		}
	}
	if err := r.clearActiveLocked(ctx, ""); err != nil {
		return err
	}

	r.logger.Info().Msg("Stopped all tracking")
	r.notifyLocked()
	return nil
}

// Resume begins tracking the persisted active space, if any. Extra active
// flags are cleared, keeping the earliest-created space.
func (r *Registry) Resume(ctx context.Context) (*storage.TrackingSpace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	spaces, err := r.spaces.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}

	var resumed *storage.TrackingSpace
	for i := range spaces {
		if !spaces[i].IsActive {
			continue
		}
		if resumed == nil {
			resumed = &spaces[i]
			continue
		}
		spaces[i].IsActive = false
		if err := r.spaces.Upsert(ctx, spaces[i]); err != nil {
			return nil, fmt.Errorf("failed to clear active flag: %w", err)
		}
		r.logger.Warn().Str("space_id", spaces[i].ID).Msg("Cleared extra active flag")
	}

	if resumed == nil {
		return nil, nil
	}
	if r.session != nil {
		if err := r.session.Begin(ctx, *resumed); err != nil {
			return nil, fmt.Errorf("failed to resume session: %w", err)
		}
	}

	r.logger.Info().Str("space_id", resumed.ID).Str("name", resumed.Name).Msg("Resumed tracking")
	r.notifyLocked()
	return resumed, nil
}

// clearActiveLocked deactivates every space except keep.
func (r *Registry) clearActiveLocked(ctx context.Context, keep string) error {
	spaces, err := r.spaces.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list spaces: %w", err)
	}
	for _, space := range spaces {
		if !space.IsActive || space.ID == keep {
			continue
		}
		space.IsActive = false
		if err := r.spaces.Upsert(ctx, space); err != nil {
			return fmt.Errorf("failed to deactivate space %q: %w", space.ID, err)
		}
	}
	return nil
}

func (r *Registry) notifyLocked() {
	if r.notifier != nil {
		r.notifier.Notify()
	}
}

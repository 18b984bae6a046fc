package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/redis/go-redis/v9"
)

type settingsStore struct {
	client *redis.Client
	keys   keys
}

// Load returns the stored settings, or the defaults when none were saved
func (s *settingsStore) Load(ctx context.Context) (storage.AppSettings, error) {
	raw, err := s.client.Get(ctx, s.keys.settings()).Bytes()
	if errors.Is(err, redis.Nil) {
		return storage.DefaultSettings(), nil
	}
	if err != nil {
		return storage.AppSettings{}, err
	}

	settings := storage.DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return storage.AppSettings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if settings.MutedApps == nil {
		settings.MutedApps = []string{}
	}
	return settings, nil
}

// Save replaces the stored settings
func (s *settingsStore) Save(ctx context.Context, settings storage.AppSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return s.client.Set(ctx, s.keys.settings(), data, 0).Err()
}

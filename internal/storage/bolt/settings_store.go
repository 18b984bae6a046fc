package bolt

import (
	"context"
	"errors"

	"github.com/goodtune/flowtrack/internal/storage"
	"go.etcd.io/bbolt"
)

type settingsStore struct {
	db *bbolt.DB
}

func (s *settingsStore) Load(ctx context.Context) (storage.AppSettings, error) {
	settings, err := getBucketValue[storage.AppSettings](ctx, s.db, bucketSettings, settingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.DefaultSettings(), nil
	}
	if err != nil {
		return storage.AppSettings{}, err
	}
	if settings.MutedApps == nil {
		settings.MutedApps = []string{}
	}
	return *settings, nil
}

func (s *settingsStore) Save(ctx context.Context, settings storage.AppSettings) error {
	return putBucketValue(ctx, s.db, bucketSettings, settingsKey, settings)
}

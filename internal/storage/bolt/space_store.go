package bolt

import (
	"context"

	"github.com/goodtune/flowtrack/internal/storage"
	"go.etcd.io/bbolt"
)

type spaceStore struct {
	db *bbolt.DB
}

func (s *spaceStore) List(ctx context.Context) ([]storage.TrackingSpace, error) {
	spaces, err := listBucket[storage.TrackingSpace](ctx, s.db, bucketSpaces)
	if err != nil {
		return nil, err
	}
	for i := range spaces {
		spaces[i] = spaces[i].Clone()
	}
	storage.SortSpaces(spaces)
	return spaces, nil
}

func (s *spaceStore) Get(ctx context.Context, id string) (*storage.TrackingSpace, error) {
	space, err := getBucketValue[storage.TrackingSpace](ctx, s.db, bucketSpaces, id)
	if err != nil {
		return nil, err
	}
	out := space.Clone()
	return &out, nil
}

func (s *spaceStore) Upsert(ctx context.Context, space storage.TrackingSpace) error {
	return putBucketValue(ctx, s.db, bucketSpaces, space.ID, space)
}

func (s *spaceStore) Delete(ctx context.Context, id string) error {
	return deleteBucketValue(ctx, s.db, bucketSpaces, id)
}

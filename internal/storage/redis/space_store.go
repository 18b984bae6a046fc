package redis

import (
	"context"
	"fmt"

	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/redis/go-redis/v9"
)

type spaceStore struct {
	client *redis.Client
	keys   keys
}

// List returns every space ordered by creation time
func (s *spaceStore) List(ctx context.Context) ([]storage.TrackingSpace, error) {
	ids, err := s.client.SMembers(ctx, s.keys.spaces()).Result()
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.keys.space(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	spaces := make([]storage.TrackingSpace, 0, len(ids))
	for i, cmd := range cmds {
		space, err := parseSpace(cmd.Val())
		if err != nil {
			if err == storage.ErrNotFound {
				// Stale set member
				continue
			}
			return nil, fmt.Errorf("space %s: %w", ids[i], err)
		}
		spaces = append(spaces, *space)
	}

	storage.SortSpaces(spaces)
	return spaces, nil
}

// Get retrieves a space by ID
func (s *spaceStore) Get(ctx context.Context, id string) (*storage.TrackingSpace, error) {
	data, err := s.client.HGetAll(ctx, s.keys.space(id)).Result()
	if err != nil {
		return nil, err
	}
	return parseSpace(data)
}

// Upsert creates or replaces a space
func (s *spaceStore) Upsert(ctx context.Context, space storage.TrackingSpace) error {
	fields, err := spaceFields(space)
	if err != nil {
		return err
	}

	script := redis.NewScript(upsertSpaceScript)
	scriptKeys := []string{s.keys.space(space.ID), s.keys.spaces()}
	args := []interface{}{
		fields["id"],
		fields["name"],
		fields["apps"],
		fields["is_active"],
		fields["color"],
		fields["created_at"],
	}

	return script.Run(ctx, s.client, scriptKeys, args...).Err()
}

// Delete removes a space by ID
func (s *spaceStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys.space(id))
		pipe.SRem(ctx, s.keys.spaces(), id)
		return nil
	})
	return err
}

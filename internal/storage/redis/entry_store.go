package redis

import (
	"context"
	"fmt"

	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/redis/go-redis/v9"
)

type entryStore struct {
	client *redis.Client
	keys   keys
}

// Increment adds seconds to the entry for (space, app, date), creating it on first use
func (s *entryStore) Increment(ctx context.Context, spaceID, appName, date string, seconds int64) error {
	script := redis.NewScript(incrementEntryScript)

	scriptKeys := []string{
		s.keys.entry(spaceID, appName, date),
		s.keys.dateIndex(date),
		s.keys.spaceIndex(spaceID),
		s.keys.dates(),
	}

	return script.Run(ctx, s.client, scriptKeys, date, spaceID, appName, seconds).Err()
}

// Get retrieves a single entry
func (s *entryStore) Get(ctx context.Context, spaceID, appName, date string) (*storage.TimeEntry, error) {
	data, err := s.client.HGetAll(ctx, s.keys.entry(spaceID, appName, date)).Result()
	if err != nil {
		return nil, err
	}
	return parseEntry(data)
}

// Query returns entries matching the filter, using the date index for ranges
func (s *entryStore) Query(ctx context.Context, filter storage.EntryFilter) ([]storage.TimeEntry, error) {
	var entryKeys []string

	if filter.SpaceID != "" && filter.DateFrom == "" && filter.DateTo == "" {
		members, err := s.client.SMembers(ctx, s.keys.spaceIndex(filter.SpaceID)).Result()
		if err != nil {
			return nil, err
		}
		entryKeys = members
	} else {
		lo, hi := "-", "+"
		if filter.DateFrom != "" {
			lo = "[" + filter.DateFrom
		}
		if filter.DateTo != "" {
			hi = "[" + filter.DateTo
		}
		dates, err := s.client.ZRangeByLex(ctx, s.keys.dates(), &redis.ZRangeBy{Min: lo, Max: hi}).Result()
		if err != nil {
			return nil, err
		}
		for _, date := range dates {
			members, err := s.client.SMembers(ctx, s.keys.dateIndex(date)).Result()
			if err != nil {
				return nil, err
			}
			entryKeys = append(entryKeys, members...)
		}
	}

	entries, err := s.load(ctx, entryKeys)
	if err != nil {
		return nil, err
	}

	matched := make([]storage.TimeEntry, 0, len(entries))
	for _, entry := range entries {
		if filter.Match(entry) {
			matched = append(matched, entry)
		}
	}
	storage.SortEntries(matched)
	return matched, nil
}

// DeleteBySpace removes every entry of a space
func (s *entryStore) DeleteBySpace(ctx context.Context, spaceID string) (int, error) {
	members, err := s.client.SMembers(ctx, s.keys.spaceIndex(spaceID)).Result()
	if err != nil {
		return 0, err
	}
	entries, err := s.load(ctx, members)
	if err != nil {
		return 0, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, entry := range entries {
			key := s.keys.entry(entry.SpaceID, entry.AppName, entry.Date)
			pipe.SRem(ctx, s.keys.dateIndex(entry.Date), key)
			pipe.Del(ctx, key)
		}
		pipe.Del(ctx, s.keys.spaceIndex(spaceID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// DeleteBefore removes every entry dated strictly before cutoffDate
func (s *entryStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	dates, err := s.client.ZRangeByLex(ctx, s.keys.dates(), &redis.ZRangeBy{Min: "-", Max: "(" + cutoffDate}).Result()
	if err != nil {
		return 0, err
	}
	if len(dates) == 0 {
		return 0, nil
	}

	var entryKeys []string
	for _, date := range dates {
		members, err := s.client.SMembers(ctx, s.keys.dateIndex(date)).Result()
		if err != nil {
			return 0, err
		}
		entryKeys = append(entryKeys, members...)
	}
	entries, err := s.load(ctx, entryKeys)
	if err != nil {
		return 0, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, entry := range entries {
			key := s.keys.entry(entry.SpaceID, entry.AppName, entry.Date)
			pipe.SRem(ctx, s.keys.spaceIndex(entry.SpaceID), key)
			pipe.Del(ctx, key)
		}
		for _, date := range dates {
			pipe.Del(ctx, s.keys.dateIndex(date))
			pipe.ZRem(ctx, s.keys.dates(), date)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// load fetches entry hashes in one pipeline, skipping keys that no longer exist
func (s *entryStore) load(ctx context.Context, entryKeys []string) ([]storage.TimeEntry, error) {
	if len(entryKeys) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(entryKeys))
	for i, key := range entryKeys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	entries := make([]storage.TimeEntry, 0, len(entryKeys))
	for i, cmd := range cmds {
		entry, err := parseEntry(cmd.Val())
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", entryKeys[i], err)
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

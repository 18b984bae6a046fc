package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/flowtrack/internal/config"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client        *redis.Client
	spaceStore    *spaceStore
	entryStore    *entryStore
	settingsStore *settingsStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry the port
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	k := keys{prefix: cfg.KeyPrefix}
	if k.prefix == "" {
		k.prefix = "flowtrack"
	}

	store := &Store{
		client:        client,
		spaceStore:    &spaceStore{client: client, keys: k},
		entryStore:    &entryStore{client: client, keys: k},
		settingsStore: &settingsStore{client: client, keys: k},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Spaces returns the SpaceStore implementation
func (s *Store) Spaces() storage.SpaceStore {
	return s.spaceStore
}

// Entries returns the EntryStore implementation
func (s *Store) Entries() storage.EntryStore {
	return s.entryStore
}

// Settings returns the SettingsStore implementation
func (s *Store) Settings() storage.SettingsStore {
	return s.settingsStore
}

// keys builds the Redis key layout:
//
//	{p}:space:{id}              hash
//	{p}:spaces                  set of space ids
//	{p}:entry:{date}/{space}/{app}  hash
//	{p}:entries:date:{date}     set of entry keys
//	{p}:entries:space:{space}   set of entry keys
//	{p}:entries:dates           zset of dates, lexicographic
//	{p}:settings                JSON string
type keys struct {
	prefix string
}

func (k keys) space(id string) string      { return k.prefix + ":space:" + id }
func (k keys) spaces() string              { return k.prefix + ":spaces" }
func (k keys) dateIndex(date string) string { return k.prefix + ":entries:date:" + date }
func (k keys) spaceIndex(id string) string { return k.prefix + ":entries:space:" + id }
func (k keys) dates() string               { return k.prefix + ":entries:dates" }
func (k keys) settings() string            { return k.prefix + ":settings" }

func (k keys) entry(spaceID, appName, date string) string {
	return k.prefix + ":entry:" + storage.EntryKey(spaceID, appName, date)
}

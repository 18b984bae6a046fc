package bolt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goodtune/flowtrack/internal/storage"
	"go.etcd.io/bbolt"
)

// Entry keys start with the date, so range queries seek to DateFrom and stop
// once the key prefix passes DateTo.
type entryStore struct {
	db *bbolt.DB
}

func (s *entryStore) Increment(ctx context.Context, spaceID, appName, date string, seconds int64) error {
	key := storage.EntryKey(spaceID, appName, date)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEntries))
		if b == nil {
			return fmt.Errorf("entries bucket missing")
		}
		var entry storage.TimeEntry
		if existing := b.Get([]byte(key)); existing != nil {
			if err := unmarshal(existing, &entry); err != nil {
				return err
			}
		} else {
			entry = storage.TimeEntry{
				SpaceID: spaceID,
				AppName: appName,
				Date:    date,
			}
			index, err := ensureIndexBucket(tx, bucketBySpace, spaceID)
			if err != nil {
				return fmt.Errorf("space index: %w", err)
			}
			if err := index.Put([]byte(key), []byte{}); err != nil {
				return err
			}
		}
		entry.Duration += seconds
		data, err := marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *entryStore) Get(ctx context.Context, spaceID, appName, date string) (*storage.TimeEntry, error) {
	return getBucketValue[storage.TimeEntry](ctx, s.db, bucketEntries, storage.EntryKey(spaceID, appName, date))
}

func (s *entryStore) Query(ctx context.Context, filter storage.EntryFilter) ([]storage.TimeEntry, error) {
	entries := make([]storage.TimeEntry, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntries))
		if b == nil {
			return nil
		}
		c := b.Cursor()

		var k, v []byte
		if filter.DateFrom != "" {
			k, v = c.Seek([]byte(filter.DateFrom))
		} else {
			k, v = c.First()
		}
		for ; k != nil; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if filter.DateTo != "" && len(k) >= len(storage.DateLayout) &&
				bytes.Compare(k[:len(storage.DateLayout)], []byte(filter.DateTo)) > 0 {
				break
			}
			var entry storage.TimeEntry
			if err := unmarshal(v, &entry); err != nil {
				return err
			}
			if filter.Match(entry) {
				entries = append(entries, entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	storage.SortEntries(entries)
	return entries, nil
}

func (s *entryStore) DeleteBySpace(ctx context.Context, spaceID string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEntries))
		if b == nil {
			return nil
		}
		index, err := ensureIndexBucket(tx, bucketBySpace)
		if err != nil {
			return err
		}
		spaceIndex := index.Bucket([]byte(spaceID))
		if spaceIndex == nil {
			return nil
		}
		err = spaceIndex.ForEach(func(k, _ []byte) error {
			if b.Get(k) == nil {
				return nil
			}
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
			return nil
		})
		if err != nil {
			return err
		}
		return index.DeleteBucket([]byte(spaceID))
	})
	return deleted, err
}

func (s *entryStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEntries))
		if b == nil {
			return nil
		}
		index, err := ensureIndexBucket(tx, bucketBySpace)
		if err != nil {
			return err
		}
		// Collect first: deleting under a live cursor skips the following key.
		var stale []storage.TimeEntry
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var entry storage.TimeEntry
			if err := unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.Date >= cutoffDate {
				break
			}
			stale = append(stale, entry)
		}
		for _, entry := range stale {
			key := []byte(storage.EntryKey(entry.SpaceID, entry.AppName, entry.Date))
			if spaceIndex := index.Bucket([]byte(entry.SpaceID)); spaceIndex != nil {
				if err := spaceIndex.Delete(key); err != nil {
					return err
				}
			}
			if err := b.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

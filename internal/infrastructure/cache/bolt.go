package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hszk-dev/clipscout/internal/domain/model"
)

var bucketVideoCache = []byte("video_cache")

// boltRecord wraps an encoded entry with its expiry.
type boltRecord struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// BoltStore implements Store on a local BoltDB file, for single-host deployments
// and the fetch CLI.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenBoltStore opens (or creates) the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVideoCache)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Available() bool {
	return true
}

// Get retrieves an unexpired entry by key.
// Returns nil, nil on cache miss.
func (s *BoltStore) Get(_ context.Context, key string) (*model.CacheEntry, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketVideoCache).Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt view: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var rec boltRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if !s.now().Before(rec.ExpiresAt) {
		return nil, nil
	}

	entry, err := decodeEntry(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("deserialize entry: %w", err)
	}

	return entry, nil
}

// Set replaces the entry under key in a single transaction.
func (s *BoltStore) Set(_ context.Context, key string, entry *model.CacheEntry, ttl time.Duration) error {
	payload, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("serialize entry: %w", err)
	}

	data, err := json.Marshal(boltRecord{ExpiresAt: s.now().Add(ttl), Payload: payload})
	if err != nil {
		return fmt.Errorf("serialize record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVideoCache).Put([]byte(key), data)
	})
}

// PurgeExpired deletes records whose TTL has elapsed and returns how many were removed.
// Unreadable records are removed as well.
func (s *BoltStore) PurgeExpired(_ context.Context) (int64, error) {
	now := s.now()
	var removed int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVideoCache)

		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil || !now.Before(rec.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = int64(len(stale))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bolt purge: %w", err)
	}
	return removed, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

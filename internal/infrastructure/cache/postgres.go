package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/clipscout/internal/domain/model"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createVideoCacheTable = `
	CREATE TABLE IF NOT EXISTS video_cache (
		cache_key  TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

// PostgresStore implements Store on a video_cache table.
// Expired rows are treated as misses and removed by PurgeExpired.
type PostgresStore struct {
	db  DBTX
	now func() time.Time
}

// NewPostgresStore creates a new Postgres-backed store.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the video_cache table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createVideoCacheTable); err != nil {
		return fmt.Errorf("failed to create video_cache table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Available() bool {
	return true
}

// Get retrieves an unexpired entry by key.
// Returns nil, nil on cache miss.
func (s *PostgresStore) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	const query = `
		SELECT payload
		FROM video_cache
		WHERE cache_key = $1 AND expires_at > $2
	`

	var payload []byte
	err := s.db.QueryRow(ctx, query, key, s.now()).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	entry, err := decodeEntry(payload)
	if err != nil {
		return nil, fmt.Errorf("deserialize entry: %w", err)
	}

	return entry, nil
}

// Set upserts an entry, replacing any previous payload for key.
func (s *PostgresStore) Set(ctx context.Context, key string, entry *model.CacheEntry, ttl time.Duration) error {
	const query = `
		INSERT INTO video_cache (cache_key, payload, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE
		SET payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`

	data, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("serialize entry: %w", err)
	}

	now := s.now()
	if _, err := s.db.Exec(ctx, query, key, data, now.Add(ttl), now); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	return nil
}

// PurgeExpired deletes rows whose TTL has elapsed and returns how many were removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM video_cache WHERE expires_at <= $1`

	tag, err := s.db.Exec(ctx, query, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}

	return tag.RowsAffected(), nil
}

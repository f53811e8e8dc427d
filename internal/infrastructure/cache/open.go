package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/clipscout/internal/config"
	"github.com/hszk-dev/clipscout/internal/infrastructure/metrics"
)

// Open connects the backend selected by cfg.Cache.Backend.
// Availability is decided once here: if the backend cannot be reached the
// returned store is Unavailable and callers proceed uncached.
// The returned close function releases backend resources and is never nil.
func Open(ctx context.Context, cfg *config.Config) (Store, func()) {
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Cache.PingTimeout)
	defer cancel()

	backend := cfg.Cache.Backend
	store, closeFn, err := openBackend(pingCtx, backend, cfg)
	if err != nil {
		slog.Warn("cache unavailable, continuing without cache",
			slog.String("backend", backend),
			slog.String("error", err.Error()),
		)
		return WithMetrics(Unavailable(), metrics.CacheTypeNone), func() {}
	}

	slog.Info("cache connected", slog.String("backend", backend))
	return WithMetrics(store, backend), closeFn
}

func openBackend(ctx context.Context, backend string, cfg *config.Config) (Store, func(), error) {
	switch backend {
	case metrics.CacheTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := NewRedisStore(client)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return store, func() { client.Close() }, nil

	case metrics.CacheTypePostgres:
		pool, err := newPostgresPool(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		store := NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case metrics.CacheTypeBolt:
		store, err := OpenBoltStore(cfg.Cache.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case metrics.CacheTypeNone, "":
		return nil, nil, fmt.Errorf("cache disabled")

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// newPostgresPool creates a small connection pool; the cache issues one
// statement per request.
func newPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

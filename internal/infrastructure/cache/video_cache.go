package cache

import (
	"context"
	"time"

	"github.com/hszk-dev/clipscout/internal/domain/model"
	"github.com/hszk-dev/clipscout/internal/infrastructure/metrics"
)

// Store defines the interface for caching fetch results by key.
// Implementations must be safe for concurrent use; each Set is an atomic replace.
type Store interface {
	// Available reports whether the backend was reachable at startup.
	// An unavailable store always misses and ignores writes.
	Available() bool

	// Get retrieves an entry by key.
	// Returns nil, nil on cache miss or expired entry.
	Get(ctx context.Context, key string) (*model.CacheEntry, error)

	// Set stores an entry under key with the specified TTL.
	Set(ctx context.Context, key string, entry *model.CacheEntry, ttl time.Duration) error
}

// Purger is implemented by backends that keep expired entries until swept.
// Redis expires keys on its own and does not implement it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// AsPurger returns the backend behind store as a Purger, if it is one.
func AsPurger(store Store) (Purger, bool) {
	if s, ok := store.(*instrumentedStore); ok {
		store = s.next
	}
	p, ok := store.(Purger)
	return p, ok
}

type unavailableStore struct{}

// Unavailable returns the store used when no backend could be reached.
func Unavailable() Store {
	return unavailableStore{}
}

func (unavailableStore) Available() bool { return false }

func (unavailableStore) Get(context.Context, string) (*model.CacheEntry, error) {
	return nil, nil
}

func (unavailableStore) Set(context.Context, string, *model.CacheEntry, time.Duration) error {
	return nil
}

// instrumentedStore records cache operation metrics around a backend.
type instrumentedStore struct {
	next      Store
	cacheType string
}

// WithMetrics wraps store so every operation is counted under cacheType.
func WithMetrics(store Store, cacheType string) Store {
	return &instrumentedStore{next: store, cacheType: cacheType}
}

func (s *instrumentedStore) Available() bool {
	return s.next.Available()
}

func (s *instrumentedStore) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	if !s.next.Available() {
		s.record(metrics.CacheOpGet, metrics.CacheStatusSkipped)
		return nil, nil
	}

	entry, err := s.next.Get(ctx, key)
	switch {
	case err != nil:
		s.record(metrics.CacheOpGet, metrics.CacheStatusError)
	case entry == nil:
		s.record(metrics.CacheOpGet, metrics.CacheStatusMiss)
	default:
		s.record(metrics.CacheOpGet, metrics.CacheStatusHit)
	}
	return entry, err
}

func (s *instrumentedStore) Set(ctx context.Context, key string, entry *model.CacheEntry, ttl time.Duration) error {
	if !s.next.Available() {
		s.record(metrics.CacheOpSet, metrics.CacheStatusSkipped)
		return nil
	}

	err := s.next.Set(ctx, key, entry, ttl)
	if err != nil {
		s.record(metrics.CacheOpSet, metrics.CacheStatusError)
	} else {
		s.record(metrics.CacheOpSet, metrics.CacheStatusSuccess)
	}
	return err
}

func (s *instrumentedStore) record(op, status string) {
	metrics.CacheOperationsTotal.WithLabelValues(op, status, s.cacheType).Inc()
}

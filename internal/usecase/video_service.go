package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/clipscout/internal/domain/model"
	"github.com/hszk-dev/clipscout/internal/infrastructure/cache"
	"github.com/hszk-dev/clipscout/internal/infrastructure/metrics"
)

var (
	// ErrInternalFault wraps a panic recovered from the fetch pipeline.
	ErrInternalFault = errors.New("internal fault")
)

// FetchRequest contains the input parameters for a video fetch.
type FetchRequest struct {
	Keywords     []string
	Limit        int
	ForceRefresh bool
	// Cursor resumes pagination; nil starts from the first page.
	Cursor *int
}

// VideoService defines the interface for the cache-aware fetch operation.
// It is the only entry point used by the HTTP API, the CLI and the worker.
type VideoService interface {
	// GetVideos returns videos for the keyword set, from cache when possible.
	// Only invalid input is returned as an error; provider failures, empty
	// results and internal faults are reported in the result.
	GetVideos(ctx context.Context, req FetchRequest) (*model.FetchResult, error)
}

// VideoServiceConfig holds configuration for VideoService.
type VideoServiceConfig struct {
	// CacheTTL is applied to every cache write. Non-positive values fall back to the default.
	CacheTTL time.Duration
}

// DefaultVideoServiceConfig returns the default configuration.
func DefaultVideoServiceConfig() VideoServiceConfig {
	return VideoServiceConfig{
		CacheTTL: 30 * time.Minute,
	}
}

type videoService struct {
	fetcher Fetcher
	store   cache.Store
	sfGroup singleflight.Group

	cacheTTL time.Duration
}

// NewVideoService creates a new VideoService instance.
func NewVideoService(fetcher Fetcher, store cache.Store, cfg VideoServiceConfig) VideoService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultVideoServiceConfig().CacheTTL
	}
	return &videoService{
		fetcher:  fetcher,
		store:    store,
		cacheTTL: cfg.CacheTTL,
	}
}

// GetVideos normalizes the request and coalesces concurrent identical fetches.
func (s *videoService) GetVideos(ctx context.Context, req FetchRequest) (*model.FetchResult, error) {
	keywords := model.NormalizeKeywords(req.Keywords)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: at least one keyword is required", model.ErrInvalidInput)
	}
	if req.Limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", model.ErrInvalidInput, req.Limit)
	}

	key := model.CacheKey(keywords, req.Cursor)
	sfKey := fmt.Sprintf("%s|%d|%t", key, req.Limit, req.ForceRefresh)

	result, _, shared := s.sfGroup.Do(sfKey, func() (any, error) {
		return s.getVideos(ctx, key, keywords, req), nil
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	return cloneResult(result.(*model.FetchResult)), nil
}

// getVideos implements the cache-aside flow for one normalized request.
func (s *videoService) getVideos(ctx context.Context, key string, keywords []string, req FetchRequest) *model.FetchResult {
	if !req.ForceRefresh {
		if result := s.fromCache(ctx, key, req.Limit); result != nil {
			s.record(metrics.SourceCache, result.Failure)
			return result
		}
	}

	outcome, err := s.fetch(ctx, keywords, req.Limit, req.Cursor)
	if err != nil {
		result := s.failure(key, err)
		s.record(metrics.SourceProvider, result.Failure)
		return result
	}

	if len(outcome.Videos) == 0 {
		result := model.Failed(model.FailureEmpty, model.EmptyResultMessage(keywords))
		result.NextCursor = outcome.Cursor
		s.record(metrics.SourceProvider, result.Failure)
		return result
	}

	entry := &model.CacheEntry{
		Videos:     outcome.Videos,
		NextCursor: outcome.Cursor,
		Requested:  req.Limit,
	}
	if err := s.store.Set(ctx, key, entry, s.cacheTTL); err != nil {
		slog.Warn("failed to cache fetch result",
			"cache_key", key,
			"error", err,
		)
	}

	s.record(metrics.SourceProvider, model.FailureNone)
	return &model.FetchResult{
		Videos:     outcome.Videos,
		NextCursor: outcome.Cursor,
	}
}

// fromCache returns a result for a usable cache hit, or nil.
func (s *videoService) fromCache(ctx context.Context, key string, limit int) *model.FetchResult {
	entry, err := s.store.Get(ctx, key)
	if err != nil {
		slog.Warn("cache get failed, fetching from provider",
			"cache_key", key,
			"error", err,
		)
		return nil
	}
	if entry == nil {
		return nil
	}
	if !entry.Covers(limit) {
		slog.Debug("cached entry smaller than requested limit",
			"cache_key", key,
			"cached_limit", entry.Requested,
			"limit", limit,
		)
		return nil
	}

	videos := entry.Videos
	if len(videos) > limit {
		videos = videos[:limit]
	}
	return &model.FetchResult{
		Videos:     videos,
		FromCache:  true,
		NextCursor: entry.NextCursor,
	}
}

// fetch runs the fetcher, converting a panic into an ErrInternalFault error.
func (s *videoService) fetch(ctx context.Context, keywords []string, limit int, cursor *int) (outcome *FetchOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("%w: %v", ErrInternalFault, r)
		}
	}()

	outcome, err = s.fetcher.Fetch(ctx, keywords, limit, cursor)
	if err == nil && outcome == nil {
		outcome = &FetchOutcome{}
	}
	return outcome, err
}

func (s *videoService) failure(key string, err error) *model.FetchResult {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		slog.Warn("search provider failed",
			"cache_key", key,
			"error", err,
		)
		return model.Failed(model.FailureProvider, err.Error())
	}

	slog.Error("fetch failed with internal fault",
		"cache_key", key,
		"error", err,
	)
	return model.Failed(model.FailureInternal, err.Error())
}

func (s *videoService) record(source string, failure model.Failure) {
	label := failure.String()
	if failure == model.FailureNone {
		label = "none"
	}
	metrics.FetchResultsTotal.WithLabelValues(source, label).Inc()
}

// cloneResult copies a result so callers sharing a singleflight result cannot
// mutate each other's videos.
func cloneResult(r *model.FetchResult) *model.FetchResult {
	out := *r
	out.Videos = make([]model.Video, len(r.Videos))
	copy(out.Videos, r.Videos)
	out.NextCursor = copyCursor(r.NextCursor)
	return &out
}

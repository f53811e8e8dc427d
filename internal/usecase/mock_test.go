package usecase

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hszk-dev/clipscout/internal/domain/model"
	"github.com/hszk-dev/clipscout/internal/domain/repository"
)

// mockSearchProvider opens mockSessions that answer with searchFn.
type mockSearchProvider struct {
	openErr  error
	searchFn func(req repository.SearchRequest) (*repository.SearchPage, error)

	mu       sync.Mutex
	requests []repository.SearchRequest
	opened   atomic.Int32
	closed   atomic.Int32
}

func (m *mockSearchProvider) Open(ctx context.Context) (repository.SearchSession, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened.Add(1)
	return &mockSearchSession{provider: m}, nil
}

func (m *mockSearchProvider) Requests() []repository.SearchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.SearchRequest(nil), m.requests...)
}

type mockSearchSession struct {
	provider *mockSearchProvider
}

func (s *mockSearchSession) Search(ctx context.Context, req repository.SearchRequest) (*repository.SearchPage, error) {
	s.provider.mu.Lock()
	s.provider.requests = append(s.provider.requests, req)
	s.provider.mu.Unlock()

	if s.provider.searchFn != nil {
		return s.provider.searchFn(req)
	}
	return &repository.SearchPage{Entries: []any{}}, nil
}

func (s *mockSearchSession) Close() error {
	s.provider.closed.Add(1)
	return nil
}

// videoEntry builds a raw provider entry for a video.
func videoEntry(id string) any {
	return map[string]any{
		"type": 1,
		"item": map[string]any{
			"id":     id,
			"desc":   "video " + id,
			"author": map[string]any{"uniqueId": "author"},
		},
	}
}

// userEntry builds a raw provider entry that is not a video.
func userEntry(id string) any {
	return map[string]any{
		"type":      4,
		"user_list": []any{map[string]any{"id": id}},
	}
}

func entries(ids ...string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, videoEntry(id))
	}
	return out
}

func intPtr(n int) *int { return &n }

// mockStore is an in-memory cache.Store.
type mockStore struct {
	mu          sync.RWMutex
	data        map[string]*model.CacheEntry
	unavailable bool
	getFn       func(ctx context.Context, key string) (*model.CacheEntry, error)
	setFn       func(ctx context.Context, key string, entry *model.CacheEntry, ttl time.Duration) error
	setCount    atomic.Int32
	lastTTL     time.Duration
}

func newMockStore() *mockStore {
	return &mockStore{
		data: make(map[string]*model.CacheEntry),
	}
}

func (m *mockStore) Available() bool {
	return !m.unavailable
}

func (m *mockStore) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	if m.unavailable {
		return nil, nil
	}
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *mockStore) Set(ctx context.Context, key string, entry *model.CacheEntry, ttl time.Duration) error {
	if m.unavailable {
		return nil
	}
	m.setCount.Add(1)
	if m.setFn != nil {
		return m.setFn(ctx, key, entry, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry
	m.lastTTL = ttl
	return nil
}

func (m *mockStore) keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// mockFetcher provides a configurable mock for Fetcher.
type mockFetcher struct {
	fetchFn    func(ctx context.Context, keywords []string, targetCount int, startingCursor *int) (*FetchOutcome, error)
	fetchCount atomic.Int32
}

func (m *mockFetcher) Fetch(ctx context.Context, keywords []string, targetCount int, startingCursor *int) (*FetchOutcome, error) {
	m.fetchCount.Add(1)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, keywords, targetCount, startingCursor)
	}
	return &FetchOutcome{}, nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	uploadFn   func(ctx context.Context, key string, reader io.Reader, contentType string) error
	downloadFn func(ctx context.Context, key string) (io.ReadCloser, error)
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, reader, contentType)
	}
	return nil
}

func (m *mockObjectStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, key)
	}
	return nil, repository.ErrObjectNotFound
}

// mockVideoService provides a configurable mock for VideoService.
type mockVideoService struct {
	getVideosFn func(ctx context.Context, req FetchRequest) (*model.FetchResult, error)
}

func (m *mockVideoService) GetVideos(ctx context.Context, req FetchRequest) (*model.FetchResult, error) {
	if m.getVideosFn != nil {
		return m.getVideosFn(ctx, req)
	}
	return &model.FetchResult{Videos: []model.Video{}}, nil
}

// mockSnapshotService provides a configurable mock for SnapshotService.
type mockSnapshotService struct {
	publishFn func(ctx context.Context, keywords []string, cursor *int, result *model.FetchResult) (string, error)
	openFn    func(ctx context.Context, keywords []string, cursor *int) (io.ReadCloser, error)
}

func (m *mockSnapshotService) Publish(ctx context.Context, keywords []string, cursor *int, result *model.FetchResult) (string, error) {
	if m.publishFn != nil {
		return m.publishFn(ctx, keywords, cursor, result)
	}
	return SnapshotKey(keywords, cursor), nil
}

func (m *mockSnapshotService) Open(ctx context.Context, keywords []string, cursor *int) (io.ReadCloser, error) {
	if m.openFn != nil {
		return m.openFn(ctx, keywords, cursor)
	}
	return nil, repository.ErrObjectNotFound
}

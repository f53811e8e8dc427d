package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hszk-dev/clipscout/internal/domain/model"
	"github.com/hszk-dev/clipscout/internal/domain/repository"
	"github.com/hszk-dev/clipscout/internal/infrastructure/cache"
)

func newTestService(provider repository.SearchProvider, store cache.Store) VideoService {
	return NewVideoService(
		NewPaginator(provider, DefaultPaginatorConfig()),
		store,
		DefaultVideoServiceConfig(),
	)
}

func fivePageProvider() *mockSearchProvider {
	return &mockSearchProvider{
		searchFn: func(req repository.SearchRequest) (*repository.SearchPage, error) {
			return &repository.SearchPage{
				Entries: entries("1", "2", "3", "4", "5"),
				HasMore: false,
			}, nil
		},
	}
}

func resultIDs(r *model.FetchResult) []string {
	ids := make([]string, len(r.Videos))
	for i, v := range r.Videos {
		ids[i] = v.ID
	}
	return ids
}

func TestVideoService_GetVideos_FreshFetch(t *testing.T) {
	provider := fivePageProvider()
	store := newMockStore()
	svc := newTestService(provider, store)

	result, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{"abc"}, Limit: 5})
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}

	if len(result.Videos) != 5 {
		t.Errorf("len(Videos) = %d, want 5", len(result.Videos))
	}
	if result.FromCache {
		t.Error("FromCache = true, want false")
	}
	if result.Error != "" || result.Failure != model.FailureNone {
		t.Errorf("Error = %q, Failure = %q; want none", result.Error, result.Failure)
	}

	entry := store.data["abc"]
	if entry == nil {
		t.Fatal("result was not cached under key abc")
	}
	if entry.Requested != 5 {
		t.Errorf("cached Requested = %d, want 5", entry.Requested)
	}
	if store.lastTTL != 30*time.Minute {
		t.Errorf("ttl = %v, want 30m", store.lastTTL)
	}
}

func TestVideoService_GetVideos_NonPositiveTTLUsesDefault(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Minute} {
		store := newMockStore()
		svc := NewVideoService(
			NewPaginator(fivePageProvider(), DefaultPaginatorConfig()),
			store,
			VideoServiceConfig{CacheTTL: ttl},
		)

		if _, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{"abc"}, Limit: 5}); err != nil {
			t.Fatalf("GetVideos() error = %v", err)
		}
		if store.lastTTL != 30*time.Minute {
			t.Errorf("CacheTTL %v: written ttl = %v, want 30m", ttl, store.lastTTL)
		}
	}
}

func TestVideoService_GetVideos_RepeatServedFromCache(t *testing.T) {
	provider := fivePageProvider()
	svc := newTestService(provider, newMockStore())
	ctx := context.Background()
	req := FetchRequest{Keywords: []string{"abc"}, Limit: 5}

	first, err := svc.GetVideos(ctx, req)
	if err != nil {
		t.Fatalf("first GetVideos() error = %v", err)
	}
	second, err := svc.GetVideos(ctx, req)
	if err != nil {
		t.Fatalf("second GetVideos() error = %v", err)
	}

	if !second.FromCache {
		t.Error("second FromCache = false, want true")
	}
	if !equalStrings(resultIDs(first), resultIDs(second)) {
		t.Errorf("cached videos = %v, want %v", resultIDs(second), resultIDs(first))
	}
	for i := range first.Videos {
		if first.Videos[i] != second.Videos[i] {
			t.Errorf("video %d = %+v, want %+v", i, second.Videos[i], first.Videos[i])
		}
	}
	if n := len(provider.Requests()); n != 1 {
		t.Errorf("provider requests = %d, want 1", n)
	}
	if provider.opened.Load() != 1 {
		t.Errorf("sessions opened = %d, want 1", provider.opened.Load())
	}
}

func TestVideoService_GetVideos_ProviderError(t *testing.T) {
	provider := &mockSearchProvider{
		searchFn: func(req repository.SearchRequest) (*repository.SearchPage, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	store := newMockStore()
	svc := newTestService(provider, store)

	result, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{"abc"}, Limit: 5})
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}

	if len(result.Videos) != 0 || result.Videos == nil {
		t.Errorf("Videos = %v, want empty non-nil", result.Videos)
	}
	if result.FromCache {
		t.Error("FromCache = true, want false")
	}
	if result.Error == "" {
		t.Error("Error is empty")
	}
	if result.Failure != model.FailureProvider {
		t.Errorf("Failure = %q, want %q", result.Failure, model.FailureProvider)
	}
	if result.NextCursor != nil {
		t.Errorf("NextCursor = %d, want nil", *result.NextCursor)
	}
	if store.setCount.Load() != 0 {
		t.Error("cache was written after provider error")
	}
}

func TestVideoService_GetVideos_EmptyResult(t *testing.T) {
	provider := &mockSearchProvider{
		searchFn: func(req repository.SearchRequest) (*repository.SearchPage, error) {
			return &repository.SearchPage{Entries: []any{userEntry("u1"), userEntry("u2")}}, nil
		},
	}
	store := newMockStore()
	svc := newTestService(provider, store)

	result, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{"abc", "def"}, Limit: 5})
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}

	if len(result.Videos) != 0 {
		t.Errorf("len(Videos) = %d, want 0", len(result.Videos))
	}
	if result.Error != "no results for keywords: abc, def" {
		t.Errorf("Error = %q", result.Error)
	}
	if result.Failure != model.FailureEmpty {
		t.Errorf("Failure = %q, want %q", result.Failure, model.FailureEmpty)
	}
	if store.setCount.Load() != 0 {
		t.Error("empty result was cached")
	}
}

func TestVideoService_GetVideos_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  FetchRequest
	}{
		{"nil keywords", FetchRequest{Limit: 5}},
		{"blank keywords", FetchRequest{Keywords: []string{"", "  ", "\t"}, Limit: 5}},
		{"zero limit", FetchRequest{Keywords: []string{"abc"}, Limit: 0}},
		{"negative limit", FetchRequest{Keywords: []string{"abc"}, Limit: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := fivePageProvider()
			svc := newTestService(provider, newMockStore())

			result, err := svc.GetVideos(context.Background(), tt.req)
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
			if result != nil {
				t.Errorf("result = %+v, want nil", result)
			}
			if provider.opened.Load() != 0 {
				t.Error("provider was called for invalid input")
			}
		})
	}
}

func TestVideoService_GetVideos_KeyNormalization(t *testing.T) {
	provider := fivePageProvider()
	store := newMockStore()
	svc := newTestService(provider, store)
	ctx := context.Background()

	if _, err := svc.GetVideos(ctx, FetchRequest{Keywords: []string{"b", "A"}, Limit: 5}); err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}
	result, err := svc.GetVideos(ctx, FetchRequest{Keywords: []string{"a", "B "}, Limit: 5})
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}

	if !result.FromCache {
		t.Error("equivalent keyword set missed the cache")
	}
	if keys := store.keys(); len(keys) != 1 || keys[0] != "a_b" {
		t.Errorf("cache keys = %v, want [a_b]", keys)
	}
}

func TestVideoService_GetVideos_SeparatorInKeywordIsOwnEntry(t *testing.T) {
	provider := &mockSearchProvider{
		searchFn: func(req repository.SearchRequest) (*repository.SearchPage, error) {
			return &repository.SearchPage{Entries: entries(req.Keyword + "-1")}, nil
		},
	}
	store := newMockStore()
	svc := newTestService(provider, store)
	ctx := context.Background()

	if _, err := svc.GetVideos(ctx, FetchRequest{Keywords: []string{"a", "b"}, Limit: 5}); err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}
	result, err := svc.GetVideos(ctx, FetchRequest{Keywords: []string{"a_b"}, Limit: 5})
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}

	if result.FromCache {
		t.Errorf("keyword set [a_b] was served the cached entry of [a b], ids = %v", resultIDs(result))
	}
	if ids := resultIDs(result); !equalStrings(ids, []string{"a_b-1"}) {
		t.Errorf("ids = %v, want [a_b-1]", ids)
	}
	if len(store.keys()) != 2 {
		t.Errorf("cache keys = %v, want two distinct entries", store.keys())
	}
}

func TestVideoService_GetVideos_QueryOrderPreserved(t *testing.T) {
	provider := fivePageProvider()
	svc := newTestService(provider, newMockStore())

	_, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{" zeta", "", "Alpha", "zeta"}, Limit: 50})
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}

	var got []string
	for _, r := range provider.Requests() {
		got = append(got, r.Keyword)
	}
	if !equalStrings(got, []string{"zeta", "Alpha"}) {
		t.Errorf("queried keywords = %v, want [zeta Alpha]", got)
	}
}

func TestVideoService_GetVideos_ForceRefresh(t *testing.T) {
	provider := fivePageProvider()
	store := newMockStore()
	store.data["abc"] = &model.CacheEntry{
		Videos:    []model.Video{{ID: "stale", URL: "u", AuthorID: "a"}},
		Requested: 5,
	}
	svc := newTestService(provider, store)

	result, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{"abc"}, Limit: 5, ForceRefresh: true})
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}

	if result.FromCache {
		t.Error("FromCache = true on forced refresh")
	}
	if n := len(provider.Requests()); n != 1 {
		t.Errorf("provider requests = %d, want 1", n)
	}
	if got := store.data["abc"].Videos[0].ID; got != "1" {
		t.Errorf("cache not overwritten, first id = %q", got)
	}
}

func TestVideoService_GetVideos_CursorKey(t *testing.T) {
	provider := fivePageProvider()
	store := newMockStore()
	svc := newTestService(provider, store)
	ctx := context.Background()

	if _, err := svc.GetVideos(ctx, FetchRequest{Keywords: []string{"abc"}, Limit: 5}); err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}
	result, err := svc.GetVideos(ctx, FetchRequest{Keywords: []string{"abc"}, Limit: 5, Cursor: intPtr(0)})
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}

	if result.FromCache {
		t.Error("cursor-qualified fetch was served from the unqualified entry")
	}
	if store.data["abc_cursor_0"] == nil {
		t.Errorf("cache keys = %v, want abc_cursor_0 present", store.keys())
	}
}

func TestVideoService_GetVideos_CachedLimit(t *testing.T) {
	tests := []struct {
		name          string
		requested     int
		limit         int
		wantFromCache bool
		wantLen       int
	}{
		{"larger entry truncated", 10, 3, true, 3},
		{"equal entry served", 5, 5, true, 5},
		{"smaller entry refetched", 2, 5, false, 5},
		{"legacy entry served", 0, 50, true, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			store.data["abc"] = &model.CacheEntry{
				Videos: []model.Video{
					{ID: "c1"}, {ID: "c2"}, {ID: "c3"}, {ID: "c4"}, {ID: "c5"},
				},
				NextCursor: intPtr(9),
				Requested:  tt.requested,
			}
			svc := newTestService(fivePageProvider(), store)

			result, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{"abc"}, Limit: tt.limit})
			if err != nil {
				t.Fatalf("GetVideos() error = %v", err)
			}
			if result.FromCache != tt.wantFromCache {
				t.Errorf("FromCache = %v, want %v", result.FromCache, tt.wantFromCache)
			}
			if len(result.Videos) != tt.wantLen {
				t.Errorf("len(Videos) = %d, want %d", len(result.Videos), tt.wantLen)
			}
		})
	}
}

func TestVideoService_GetVideos_CacheErrorFallsBackToProvider(t *testing.T) {
	provider := fivePageProvider()
	store := newMockStore()
	store.getFn = func(ctx context.Context, key string) (*model.CacheEntry, error) {
		return nil, errors.New("redis: connection refused")
	}
	store.setFn = func(ctx context.Context, key string, entry *model.CacheEntry, ttl time.Duration) error {
		return errors.New("redis: connection refused")
	}
	svc := newTestService(provider, store)

	result, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{"abc"}, Limit: 5})
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}
	if len(result.Videos) != 5 || result.Error != "" {
		t.Errorf("result = %+v, want 5 videos and no error", result)
	}
}

func TestVideoService_GetVideos_UnavailableCache(t *testing.T) {
	provider := fivePageProvider()
	svc := newTestService(provider, cache.Unavailable())
	ctx := context.Background()
	req := FetchRequest{Keywords: []string{"abc"}, Limit: 5}

	for i := 0; i < 2; i++ {
		result, err := svc.GetVideos(ctx, req)
		if err != nil {
			t.Fatalf("GetVideos() error = %v", err)
		}
		if result.FromCache {
			t.Error("FromCache = true with unavailable cache")
		}
	}
	if provider.opened.Load() != 2 {
		t.Errorf("sessions opened = %d, want 2", provider.opened.Load())
	}
}

func TestVideoService_GetVideos_InternalFault(t *testing.T) {
	tests := []struct {
		name    string
		fetchFn func(ctx context.Context, keywords []string, targetCount int, startingCursor *int) (*FetchOutcome, error)
		wantMsg string
	}{
		{
			name: "panic",
			fetchFn: func(ctx context.Context, keywords []string, targetCount int, startingCursor *int) (*FetchOutcome, error) {
				panic("index out of range")
			},
			wantMsg: "internal fault: index out of range",
		},
		{
			name: "unexpected error",
			fetchFn: func(ctx context.Context, keywords []string, targetCount int, startingCursor *int) (*FetchOutcome, error) {
				return nil, errors.New("extractor exploded")
			},
			wantMsg: "extractor exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			svc := NewVideoService(&mockFetcher{fetchFn: tt.fetchFn}, store, DefaultVideoServiceConfig())

			result, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{"abc"}, Limit: 5})
			if err != nil {
				t.Fatalf("GetVideos() error = %v", err)
			}
			if result.Failure != model.FailureInternal {
				t.Errorf("Failure = %q, want %q", result.Failure, model.FailureInternal)
			}
			if !strings.Contains(result.Error, tt.wantMsg) {
				t.Errorf("Error = %q, want it to contain %q", result.Error, tt.wantMsg)
			}
			if len(result.Videos) != 0 {
				t.Errorf("len(Videos) = %d, want 0", len(result.Videos))
			}
			if store.setCount.Load() != 0 {
				t.Error("cache was written after internal fault")
			}
		})
	}
}

func TestVideoService_GetVideos_Singleflight(t *testing.T) {
	release := make(chan struct{})
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, keywords []string, targetCount int, startingCursor *int) (*FetchOutcome, error) {
			<-release
			return &FetchOutcome{Videos: []model.Video{{ID: "1"}}}, nil
		},
	}
	svc := NewVideoService(fetcher, newMockStore(), DefaultVideoServiceConfig())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.GetVideos(context.Background(), FetchRequest{Keywords: []string{"abc"}, Limit: 5})
			if err != nil {
				t.Errorf("GetVideos failed: %v", err)
				return
			}
			if len(result.Videos) != 1 {
				t.Errorf("len(Videos) = %d, want 1", len(result.Videos))
			}
		}()
	}

	// Give the goroutines time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := fetcher.fetchCount.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1 (singleflight should coalesce)", n)
	}
}

func TestVideoService_GetVideos_ResultsAreIndependentCopies(t *testing.T) {
	provider := fivePageProvider()
	svc := newTestService(provider, newMockStore())
	ctx := context.Background()
	req := FetchRequest{Keywords: []string{"abc"}, Limit: 5}

	first, _ := svc.GetVideos(ctx, req)
	first.Videos[0].ID = "mutated"

	second, err := svc.GetVideos(ctx, req)
	if err != nil {
		t.Fatalf("GetVideos() error = %v", err)
	}
	if second.Videos[0].ID != "1" {
		t.Errorf("cached video mutated through caller result: %q", second.Videos[0].ID)
	}
}

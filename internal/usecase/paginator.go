package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hszk-dev/clipscout/internal/domain/model"
	"github.com/hszk-dev/clipscout/internal/domain/repository"
	"github.com/hszk-dev/clipscout/internal/extractor"
	"github.com/hszk-dev/clipscout/internal/infrastructure/metrics"
)

const (
	// DefaultPageCap is the default maximum number of pages requested per keyword.
	DefaultPageCap = 50
)

// ProviderError reports a transport or malformed-response failure from the
// search provider. A fetch that hits one returns no partial videos.
type ProviderError struct {
	Keyword string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Keyword == "" {
		return fmt.Sprintf("search provider failed: %v", e.Err)
	}
	return fmt.Sprintf("search provider failed for keyword %q: %v", e.Keyword, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FetchOutcome is the result of a successful paginated fetch.
type FetchOutcome struct {
	Videos []model.Video
	// Cursor is the most recently advanced cursor, or the starting cursor
	// when pagination never advanced.
	Cursor *int
}

// Fetcher drives paginated requests against the search provider.
type Fetcher interface {
	// Fetch collects up to targetCount distinct videos across keywords in order.
	// Returns *ProviderError when any page request fails.
	Fetch(ctx context.Context, keywords []string, targetCount int, startingCursor *int) (*FetchOutcome, error)
}

// PaginatorConfig holds configuration for the Paginator.
type PaginatorConfig struct {
	// PageCap bounds page requests per keyword.
	PageCap int
}

// DefaultPaginatorConfig returns the default configuration.
func DefaultPaginatorConfig() PaginatorConfig {
	return PaginatorConfig{
		PageCap: DefaultPageCap,
	}
}

// Paginator implements Fetcher. It holds no state between fetches.
type Paginator struct {
	provider repository.SearchProvider
	pageCap  int
}

// NewPaginator creates a new Paginator.
func NewPaginator(provider repository.SearchProvider, cfg PaginatorConfig) *Paginator {
	pageCap := cfg.PageCap
	if pageCap < 1 {
		pageCap = DefaultPageCap
	}
	return &Paginator{
		provider: provider,
		pageCap:  pageCap,
	}
}

// Fetch runs keywords sequentially, one outstanding page request at a time.
// The provider session lives for exactly one call.
func (p *Paginator) Fetch(ctx context.Context, keywords []string, targetCount int, startingCursor *int) (*FetchOutcome, error) {
	session, err := p.provider.Open(ctx)
	if err != nil {
		return nil, &ProviderError{Err: fmt.Errorf("open session: %w", err)}
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close search session", "error", err)
		}
	}()

	videos := make([]model.Video, 0)
	seen := make(map[string]struct{})
	lastCursor := copyCursor(startingCursor)

	for _, keyword := range keywords {
		if len(videos) >= targetCount {
			break
		}

		cursor := 0
		if startingCursor != nil {
			cursor = *startingCursor
		}

		reason := metrics.StopPageCap
		for page := 0; page < p.pageCap; page++ {
			if len(videos) >= targetCount {
				reason = metrics.StopTarget
				break
			}

			resp, err := session.Search(ctx, repository.SearchRequest{
				Keyword: keyword,
				Offset:  cursor,
				Count:   targetCount - len(videos),
			})
			if err != nil {
				metrics.ProviderPagesTotal.WithLabelValues(metrics.ProviderOutcomeError).Inc()
				return nil, &ProviderError{Keyword: keyword, Err: err}
			}
			metrics.ProviderPagesTotal.WithLabelValues(metrics.ProviderOutcomeOK).Inc()

			for _, v := range extractor.Extract(resp.Entries) {
				if _, dup := seen[v.ID]; dup {
					continue
				}
				seen[v.ID] = struct{}{}
				videos = append(videos, v)
			}

			if !resp.HasMore {
				reason = metrics.StopNoMore
				break
			}
			if resp.Cursor == nil || *resp.Cursor == cursor {
				reason = metrics.StopStagnantCursor
				break
			}
			cursor = *resp.Cursor
			lastCursor = copyCursor(&cursor)
		}

		// A final permitted page that fills the target counts as a target stop.
		if reason == metrics.StopPageCap && len(videos) >= targetCount {
			reason = metrics.StopTarget
		}
		metrics.PaginationStopsTotal.WithLabelValues(reason).Inc()

		slog.Debug("keyword pagination stopped",
			"keyword", keyword,
			"reason", reason,
			"accumulated", len(videos),
		)
	}

	if len(videos) > targetCount {
		videos = videos[:targetCount]
	}

	return &FetchOutcome{
		Videos: videos,
		Cursor: lastCursor,
	}, nil
}

func copyCursor(c *int) *int {
	if c == nil {
		return nil
	}
	n := *c
	return &n
}

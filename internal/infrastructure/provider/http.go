// Package provider implements the search provider port over the public
// web search endpoint.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hszk-dev/clipscout/internal/domain/repository"
)

// webSearchCode is sent verbatim with every search request.
const webSearchCode = `{"tiktok":{"client_params_x":{"search_engine":{"ies_mt_user_live_video_card_use_libra":1,"mt_search_general_user_live_video_card":1}},"search_server":{}}}`

// maxBodySize bounds how much of a response is read.
const maxBodySize = 16 << 20

// ErrUnexpectedShape is returned when a response does not look like a search page.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// Config holds configuration for the HTTP provider.
type Config struct {
	SearchURL string
	UserAgent string
	Cookie    string
	Timeout   time.Duration
	// RequestsPerSec paces page requests across all sessions. Zero disables pacing.
	RequestsPerSec float64
	Burst          int
}

// HTTPProvider implements repository.SearchProvider.
type HTTPProvider struct {
	cfg     Config
	limiter *rate.Limiter
}

// NewHTTPProvider creates a provider. The rate limiter is shared by every session.
func NewHTTPProvider(cfg Config) *HTTPProvider {
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &HTTPProvider{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Open starts a session with its own cookie jar and search id.
func (p *HTTPProvider) Open(_ context.Context) (repository.SearchSession, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &session{
		provider: p,
		client: &http.Client{
			Timeout: p.cfg.Timeout,
			Jar:     jar,
		},
		searchID: uuid.NewString(),
	}, nil
}

// searchParams is encoded into the search query string.
type searchParams struct {
	Keyword       string `url:"keyword"`
	Offset        int    `url:"offset"`
	Count         int    `url:"count"`
	FromPage      string `url:"from_page"`
	SearchID      string `url:"search_id"`
	Source        string `url:"source"`
	WebSearchCode string `url:"web_search_code"`
}

// searchResponse is the subset of the search payload the engine reads.
type searchResponse struct {
	StatusCode json.Number     `json:"status_code"`
	StatusMsg  string          `json:"status_msg"`
	Data       []any           `json:"data"`
	HasMore    json.RawMessage `json:"has_more"`
	Cursor     json.RawMessage `json:"cursor"`
}

type session struct {
	provider *HTTPProvider
	client   *http.Client
	searchID string
}

// Search requests one page of results.
func (s *session) Search(ctx context.Context, req repository.SearchRequest) (*repository.SearchPage, error) {
	if err := s.provider.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	values, err := query.Values(searchParams{
		Keyword:       req.Keyword,
		Offset:        req.Offset,
		Count:         req.Count,
		FromPage:      "search",
		SearchID:      s.searchID,
		Source:        "search_history",
		WebSearchCode: webSearchCode,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search params: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.provider.cfg.SearchURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")
	httpReq.Header.Set("Referer", "https://www.tiktok.com/search?q="+url.QueryEscape(req.Keyword))
	if ua := s.provider.cfg.UserAgent; ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	}
	if cookie := s.provider.cfg.Cookie; cookie != "" {
		httpReq.Header.Set("Cookie", cookie)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return parsePage(body)
}

// Close releases the session's idle connections.
func (s *session) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func parsePage(body []byte) (*repository.SearchPage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var r searchResponse
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}

	if r.StatusCode != "" && r.StatusCode != "0" {
		return nil, fmt.Errorf("provider status %s: %s", r.StatusCode, r.StatusMsg)
	}

	hasMore, err := parseHasMore(r.HasMore)
	if err != nil {
		return nil, err
	}
	cursor, err := parseCursor(r.Cursor)
	if err != nil {
		return nil, err
	}

	entries := r.Data
	if entries == nil {
		entries = []any{}
	}

	return &repository.SearchPage{
		Entries: entries,
		HasMore: hasMore,
		Cursor:  cursor,
	}, nil
}

// decodeScalar decodes a raw field, keeping numbers as json.Number.
func decodeScalar(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// parseHasMore accepts a bool, a 0/1 integer or their string forms.
// A missing flag means no more pages.
func parseHasMore(raw json.RawMessage) (bool, error) {
	v, err := decodeScalar(raw)
	if err != nil {
		return false, fmt.Errorf("%w: has_more: %v", ErrUnexpectedShape, err)
	}

	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return false, fmt.Errorf("%w: has_more %q", ErrUnexpectedShape, t)
		}
		return n != 0, nil
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: has_more %v", ErrUnexpectedShape, v)
}

// parseCursor accepts an integer or a numeric string. A missing cursor is nil.
func parseCursor(raw json.RawMessage) (*int, error) {
	v, err := decodeScalar(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", ErrUnexpectedShape, err)
	}

	var s string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		s = t.String()
	case string:
		if t == "" {
			return nil, nil
		}
		s = t
	default:
		return nil, fmt.Errorf("%w: cursor %v", ErrUnexpectedShape, v)
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor %q", ErrUnexpectedShape, s)
	}
	return &n, nil
}

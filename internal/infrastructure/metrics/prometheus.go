// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clipscout"

var (
	// CacheOperationsTotal tracks cache operations (get, set).
	// Labels:
	//   - operation: get, set
	//   - status: hit, miss, success, error, skipped
	//   - cache_type: redis, postgres, bolt, none
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// ProviderPagesTotal tracks page requests against the search provider.
	// Labels:
	//   - outcome: ok, error
	ProviderPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_pages_total",
			Help:      "Total number of search provider page requests",
		},
		[]string{"outcome"},
	)

	// PaginationStopsTotal tracks why pagination stopped for a keyword.
	// Labels:
	//   - reason: target, page_cap, no_more, stagnant_cursor
	PaginationStopsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pagination_stops_total",
			Help:      "Total number of per-keyword pagination stops",
		},
		[]string{"reason"},
	)

	// FetchResultsTotal tracks orchestrated fetch results.
	// Labels:
	//   - source: cache, provider
	//   - failure: none, provider_error, empty_result, internal_error
	FetchResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "Total number of fetch results",
		},
		[]string{"source", "failure"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal tracks served HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method"},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
	CacheStatusSkipped = "skipped"
)

// Cache operation type constants.
const (
	CacheOpGet = "get"
	CacheOpSet = "set"
)

// Cache type constants.
const (
	CacheTypeRedis    = "redis"
	CacheTypePostgres = "postgres"
	CacheTypeBolt     = "bolt"
	CacheTypeNone     = "none"
)

// Provider page outcome constants.
const (
	ProviderOutcomeOK    = "ok"
	ProviderOutcomeError = "error"
)

// Pagination stop reason constants.
const (
	StopTarget         = "target"
	StopPageCap        = "page_cap"
	StopNoMore         = "no_more"
	StopStagnantCursor = "stagnant_cursor"
)

// Fetch source constants.
const (
	SourceCache    = "cache"
	SourceProvider = "provider"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)

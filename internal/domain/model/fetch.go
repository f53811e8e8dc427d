package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Failure classifies why a FetchResult carries no usable videos.
type Failure string

const (
	FailureNone     Failure = ""
	FailureProvider Failure = "provider_error"
	FailureEmpty    Failure = "empty_result"
	FailureInternal Failure = "internal_error"
)

func (f Failure) String() string {
	return string(f)
}

// FetchResult is the output of one orchestrated fetch.
type FetchResult struct {
	Videos     []Video
	FromCache  bool
	NextCursor *int
	Error      string
	Failure    Failure
}

// Failed builds an empty result for the given failure.
func Failed(failure Failure, msg string) *FetchResult {
	return &FetchResult{
		Videos:  []Video{},
		Error:   msg,
		Failure: failure,
	}
}

// EmptyResultMessage is the in-band message for a fetch that found nothing.
func EmptyResultMessage(keywords []string) string {
	return fmt.Sprintf("%s: %s", ErrEmptyResult.Error(), strings.Join(keywords, ", "))
}

// CacheEntry is the persisted form of a successful fetch.
// Expiry is owned by the store, not the payload.
type CacheEntry struct {
	Videos     []Video
	NextCursor *int
	// Requested is the limit the entry was fetched for.
	Requested int
}

// Covers reports whether the entry can serve a request for limit videos.
// Entries written before Requested existed are trusted as-is.
func (e *CacheEntry) Covers(limit int) bool {
	if e.Requested == 0 {
		return true
	}
	return e.Requested >= limit
}

// NormalizeKeywords trims keywords, drops blanks and repeated keywords while
// keeping first-seen order.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// SplitKeywords splits a comma separated query into keywords.
func SplitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	return NormalizeKeywords(strings.Split(raw, ","))
}

// keyEscaper percent-encodes the key separator, the escape character and the
// object path separator inside a keyword, so distinct keyword sets never share a key.
var keyEscaper = strings.NewReplacer("%", "%25", "_", "%5F", "/", "%2F")

// CacheKey builds the cache key for a keyword set.
// Format: {sorted lower-cased escaped keywords joined by _}[_cursor_{n}]
func CacheKey(keywords []string, cursor *int) string {
	normalized := NormalizeKeywords(keywords)
	lowered := make([]string, 0, len(normalized))
	seen := make(map[string]struct{}, len(normalized))
	for _, k := range normalized {
		k = strings.ToLower(k)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		lowered = append(lowered, k)
	}
	sort.Strings(lowered)
	for i, k := range lowered {
		lowered[i] = keyEscaper.Replace(k)
	}

	key := strings.Join(lowered, "_")
	if cursor != nil {
		key += "_cursor_" + strconv.Itoa(*cursor)
	}
	return key
}

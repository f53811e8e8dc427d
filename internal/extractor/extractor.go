// Package extractor turns raw search provider entries into videos.
//
// Provider payloads are inconsistent across response variants, so every field
// access tolerates missing keys and unexpected types. A malformed entry is
// skipped, never fatal.
package extractor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hszk-dev/clipscout/internal/domain/model"
)

// videoType is the provider's type marker for video entries.
const videoType = 1

// maxImageDepth bounds the thumbnail probe on pathological payloads.
const maxImageDepth = 8

var (
	// thumbnailFields are probed in priority order.
	thumbnailFields = []string{"originCover", "cover", "dynamicCover"}

	// imageKeys are the alternate key names an image mapping may use.
	imageKeys = []string{"url", "thumbUrl", "thumb_url", "cover", "origin", "uri", "urlList", "url_list", "urls"}

	downloadFields = []string{"downloadAddr", "downloadAddrH265", "downloadAddrWatermark"}
	playFields     = []string{"playAddr", "playAddrH265", "playApiHref"}
)

// Extract converts raw entries to videos, preserving input order.
// Entries that are not videos or that lack an id are dropped.
func Extract(entries []any) []model.Video {
	videos := make([]model.Video, 0, len(entries))
	for _, raw := range entries {
		if v, ok := extractEntry(raw); ok {
			videos = append(videos, *v)
		}
	}
	return videos
}

func extractEntry(raw any) (*model.Video, bool) {
	entry, ok := raw.(map[string]any)
	if !ok || !isVideoType(entry["type"]) {
		return nil, false
	}

	item, _ := entry["item"].(map[string]any)
	author, _ := item["author"].(map[string]any)

	video, err := model.NewVideo(scalarString(item["id"]), firstScalar(author, "uniqueId", "id"))
	if err != nil {
		return nil, false
	}

	video.Title = stringField(item, "desc")

	meta, _ := item["video"].(map[string]any)
	video.ThumbnailURL = resolveThumbnail(meta)
	video.DownloadURL = firstString(meta, downloadFields...)
	video.PlayURL = firstString(meta, playFields...)

	return video, true
}

func isVideoType(v any) bool {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return err == nil && n == videoType
	case float64:
		return t == videoType
	case int:
		return t == videoType
	case int64:
		return t == videoType
	default:
		return false
	}
}

// resolveThumbnail returns the first usable cover image of a video payload.
func resolveThumbnail(meta map[string]any) string {
	for _, field := range thumbnailFields {
		if url := resolveImage(meta[field], 0); url != "" {
			return url
		}
	}
	return ""
}

// resolveImage walks a candidate depth-first. A candidate is a string, a mapping
// keyed by one of imageKeys, or a list of candidates.
func resolveImage(candidate any, depth int) string {
	if depth > maxImageDepth {
		return ""
	}

	switch t := candidate.(type) {
	case string:
		return strings.TrimSpace(t)
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	case []any:
		for _, c := range t {
			if url := resolveImage(c, depth+1); url != "" {
				return url
			}
		}
	case map[string]any:
		for _, key := range imageKeys {
			if url := resolveImage(t[key], depth+1); url != "" {
				return url
			}
		}
	}
	return ""
}

// firstString returns the first non-empty string field of m.
func firstString(m map[string]any, fields ...string) string {
	for _, f := range fields {
		if s := stringField(m, f); s != "" {
			return s
		}
	}
	return ""
}

// firstScalar is firstString for fields that may also be numeric.
func firstScalar(m map[string]any, fields ...string) string {
	for _, f := range fields {
		if s := scalarString(m[f]); s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]any, field string) string {
	s, _ := m[field].(string)
	return s
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

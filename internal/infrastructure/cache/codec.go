package cache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hszk-dev/clipscout/internal/domain/model"
)

// ErrCorruptEntry is returned when a stored payload does not decode into videos.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// entryJSON is the JSON representation of a CacheEntry.
// Using explicit structs avoids coupling to the domain model's field names.
type entryJSON struct {
	Videos     []videoJSON `json:"videos"`
	NextCursor *int        `json:"next_cursor"`
	Requested  int         `json:"requested,omitempty"`
}

type videoJSON struct {
	ID           string `json:"video_id"`
	URL          string `json:"video_url"`
	AuthorID     string `json:"author_id"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Title        string `json:"title,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
	PlayURL      string `json:"play_url,omitempty"`
}

// encodeEntry converts a CacheEntry to JSON bytes.
func encodeEntry(entry *model.CacheEntry) ([]byte, error) {
	e := entryJSON{
		Videos:     make([]videoJSON, 0, len(entry.Videos)),
		NextCursor: entry.NextCursor,
		Requested:  entry.Requested,
	}
	for _, v := range entry.Videos {
		e.Videos = append(e.Videos, videoJSON{
			ID:           v.ID,
			URL:          v.URL,
			AuthorID:     v.AuthorID,
			ThumbnailURL: v.ThumbnailURL,
			Title:        v.Title,
			DownloadURL:  v.DownloadURL,
			PlayURL:      v.PlayURL,
		})
	}
	return json.Marshal(e)
}

// decodeEntry converts JSON bytes to a CacheEntry.
// Payloads with no videos or with a video missing its id are rejected.
func decodeEntry(data []byte) (*model.CacheEntry, error) {
	var e entryJSON
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if len(e.Videos) == 0 {
		return nil, fmt.Errorf("%w: no videos", ErrCorruptEntry)
	}

	videos := make([]model.Video, 0, len(e.Videos))
	for i, v := range e.Videos {
		if v.ID == "" {
			return nil, fmt.Errorf("%w: video %d has no id", ErrCorruptEntry, i)
		}
		videos = append(videos, model.Video{
			ID:           v.ID,
			URL:          v.URL,
			AuthorID:     v.AuthorID,
			ThumbnailURL: v.ThumbnailURL,
			Title:        v.Title,
			DownloadURL:  v.DownloadURL,
			PlayURL:      v.PlayURL,
		})
	}

	return &model.CacheEntry{
		Videos:     videos,
		NextCursor: e.NextCursor,
		Requested:  e.Requested,
	}, nil
}

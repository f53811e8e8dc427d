package model

// Snapshot is the JSON artifact published for static serving.
type Snapshot struct {
	Keywords   []string        `json:"keywords"`
	Total      int             `json:"total"`
	FromCache  bool            `json:"from_cache"`
	NextCursor *int            `json:"next_cursor,omitempty"`
	Videos     []SnapshotVideo `json:"videos"`
	Error      string          `json:"error,omitempty"`
}

// SnapshotVideo is the flat JSON form of a Video.
type SnapshotVideo struct {
	VideoID      string `json:"video_id"`
	VideoURL     string `json:"video_url"`
	AuthorID     string `json:"author_id"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Title        string `json:"title,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
	PlayURL      string `json:"play_url,omitempty"`
}

// NewSnapshot renders a fetch result into the published artifact.
func NewSnapshot(keywords []string, result *FetchResult) *Snapshot {
	videos := make([]SnapshotVideo, 0, len(result.Videos))
	for _, v := range result.Videos {
		videos = append(videos, SnapshotVideo{
			VideoID:      v.ID,
			VideoURL:     v.URL,
			AuthorID:     v.AuthorID,
			ThumbnailURL: v.ThumbnailURL,
			Title:        v.Title,
			DownloadURL:  v.DownloadURL,
			PlayURL:      v.PlayURL,
		})
	}
	return &Snapshot{
		Keywords:   keywords,
		Total:      len(videos),
		FromCache:  result.FromCache,
		NextCursor: result.NextCursor,
		Videos:     videos,
		Error:      result.Error,
	}
}

package model

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// UnknownAuthor is used when the provider omits both the handle and the numeric id.
	UnknownAuthor = "unknown"

	videoURLFormat = "https://www.tiktok.com/@%s/video/%s"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyVideoID = errors.New("video ID cannot be empty")
	ErrEmptyResult  = errors.New("no results for keywords")
)

// Video is one discovered short-form video.
type Video struct {
	ID           string
	URL          string
	AuthorID     string
	ThumbnailURL string
	Title        string
	DownloadURL  string
	PlayURL      string
}

// NewVideo builds a Video with its canonical URL derived from id and author.
func NewVideo(id, authorID string) (*Video, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyVideoID
	}
	if authorID == "" {
		authorID = UnknownAuthor
	}
	return &Video{
		ID:       id,
		URL:      VideoURL(authorID, id),
		AuthorID: authorID,
	}, nil
}

// VideoURL returns the canonical deep link for a video.
func VideoURL(authorID, id string) string {
	return fmt.Sprintf(videoURLFormat, authorID, id)
}

// MediaURL returns the best direct playback URL, preferring the play variant.
func (v *Video) MediaURL() string {
	if v.PlayURL != "" {
		return v.PlayURL
	}
	return v.DownloadURL
}

package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/hszk-dev/clipscout/internal/domain/model"
	"github.com/hszk-dev/clipscout/internal/domain/repository"
)

const (
	snapshotPrefix      = "snapshots"
	snapshotContentType = "application/json"
)

// SnapshotKey returns the object key of the published artifact for a keyword set
// and starting cursor. Format: snapshots/{cache key}.json
func SnapshotKey(keywords []string, cursor *int) string {
	return path.Join(snapshotPrefix, model.CacheKey(keywords, cursor)+".json")
}

// SnapshotService publishes fetch results as JSON artifacts for static serving.
type SnapshotService interface {
	// Publish renders result and uploads it, returning the object key.
	// A result fetched from a cursor is published apart from the first page.
	Publish(ctx context.Context, keywords []string, cursor *int, result *model.FetchResult) (string, error)

	// Open returns the latest published artifact for keywords and cursor.
	// Returns repository.ErrObjectNotFound when nothing was published yet.
	Open(ctx context.Context, keywords []string, cursor *int) (io.ReadCloser, error)
}

type snapshotService struct {
	storage repository.ObjectStorage
}

// NewSnapshotService creates a new SnapshotService instance.
func NewSnapshotService(storage repository.ObjectStorage) SnapshotService {
	return &snapshotService{storage: storage}
}

func (s *snapshotService) Publish(ctx context.Context, keywords []string, cursor *int, result *model.FetchResult) (string, error) {
	keywords = model.NormalizeKeywords(keywords)
	if len(keywords) == 0 {
		return "", fmt.Errorf("%w: at least one keyword is required", model.ErrInvalidInput)
	}

	data, err := MarshalSnapshot(keywords, result)
	if err != nil {
		return "", err
	}

	key := SnapshotKey(keywords, cursor)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), snapshotContentType); err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	return key, nil
}

func (s *snapshotService) Open(ctx context.Context, keywords []string, cursor *int) (io.ReadCloser, error) {
	keywords = model.NormalizeKeywords(keywords)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: at least one keyword is required", model.ErrInvalidInput)
	}
	return s.storage.Download(ctx, SnapshotKey(keywords, cursor))
}

// MarshalSnapshot renders the artifact document with two-space indentation.
// Media URLs are written verbatim, without HTML escaping of & < >.
func MarshalSnapshot(keywords []string, result *model.FetchResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(model.NewSnapshot(keywords, result)); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

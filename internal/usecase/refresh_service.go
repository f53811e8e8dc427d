package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hszk-dev/clipscout/internal/domain/model"
	"github.com/hszk-dev/clipscout/internal/domain/repository"
)

const (
	// DefaultMaxRetries is the default maximum number of retry attempts for a refresh task.
	DefaultMaxRetries = 3
)

// RefreshServiceConfig holds configuration for RefreshService.
type RefreshServiceConfig struct {
	// MaxRetries is the maximum number of retry attempts before a task is dropped.
	MaxRetries int
}

// DefaultRefreshServiceConfig returns the default configuration.
func DefaultRefreshServiceConfig() RefreshServiceConfig {
	return RefreshServiceConfig{
		MaxRetries: DefaultMaxRetries,
	}
}

// RefreshService defines the interface for asynchronous refresh processing.
type RefreshService interface {
	// ProcessTask handles a refresh task from the message queue.
	// Returns nil on success or permanent failure (max retries exceeded, invalid task).
	// Returns error for transient failures that should trigger a retry.
	ProcessTask(ctx context.Context, task repository.RefreshTask) error
}

type refreshService struct {
	videos    VideoService
	snapshots SnapshotService

	maxRetries int
}

// NewRefreshService creates a new RefreshService instance.
func NewRefreshService(videos VideoService, snapshots SnapshotService, cfg RefreshServiceConfig) RefreshService {
	return &refreshService{
		videos:     videos,
		snapshots:  snapshots,
		maxRetries: cfg.MaxRetries,
	}
}

// ProcessTask forces a fresh fetch and publishes its snapshot.
// Provider failures are retried; empty results are published as-is.
func (s *refreshService) ProcessTask(ctx context.Context, task repository.RefreshTask) error {
	if task.RetryCount >= s.maxRetries {
		slog.Error("refresh task exceeded max retries, dropping",
			"task_id", task.TaskID,
			"keywords", task.Keywords,
			"retry_count", task.RetryCount,
		)
		return nil
	}

	result, err := s.videos.GetVideos(ctx, FetchRequest{
		Keywords:     task.Keywords,
		Limit:        task.Limit,
		ForceRefresh: true,
		Cursor:       task.Cursor,
	})
	if err != nil {
		// Invalid tasks can never succeed.
		slog.Error("discarding invalid refresh task",
			"task_id", task.TaskID,
			"error", err,
		)
		return nil
	}

	if result.Failure == model.FailureProvider || result.Failure == model.FailureInternal {
		return fmt.Errorf("refresh %v: %s", task.Keywords, result.Error)
	}

	key, err := s.snapshots.Publish(ctx, task.Keywords, task.Cursor, result)
	if err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	slog.Info("refresh task completed",
		"task_id", task.TaskID,
		"snapshot", key,
		"videos", len(result.Videos),
	)
	return nil
}

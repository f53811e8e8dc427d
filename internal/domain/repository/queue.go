package repository

import (
	"context"

	"github.com/google/uuid"
)

// RefreshTask asks a worker to force-refresh a keyword set and publish its snapshot.
type RefreshTask struct {
	TaskID     uuid.UUID `json:"task_id"`
	Keywords   []string  `json:"keywords"`
	Limit      int       `json:"limit"`
	Cursor     *int      `json:"cursor,omitempty"`
	RetryCount int       `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishRefreshTask sends a refresh task to the queue.
	// Used by the API server to trigger async refreshes.
	PublishRefreshTask(ctx context.Context, task RefreshTask) error

	// ConsumeRefreshTasks consumes refresh tasks until ctx is cancelled.
	// The handler function is called for each received task.
	// Used by the worker service.
	ConsumeRefreshTasks(ctx context.Context, handler func(task RefreshTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}

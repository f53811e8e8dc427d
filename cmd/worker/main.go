package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hszk-dev/clipscout/internal/config"
	"github.com/hszk-dev/clipscout/internal/domain/repository"
	"github.com/hszk-dev/clipscout/internal/infrastructure/cache"
	"github.com/hszk-dev/clipscout/internal/infrastructure/provider"
	"github.com/hszk-dev/clipscout/internal/infrastructure/queue"
	"github.com/hszk-dev/clipscout/internal/infrastructure/storage"
	"github.com/hszk-dev/clipscout/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize infrastructure clients
	store, closeCache := cache.Open(ctx, cfg)
	defer closeCache()

	snapshotStore, err := storage.NewSnapshotStore(ctx, storage.ClientConfig{
		Endpoint:     cfg.MinIO.Endpoint,
		AccessKey:    cfg.MinIO.AccessKey,
		SecretKey:    cfg.MinIO.SecretKey,
		Bucket:       cfg.MinIO.Bucket,
		UseSSL:       cfg.MinIO.UseSSL,
		CreateBucket: cfg.MinIO.Create,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO", slog.String("bucket", snapshotStore.Bucket()))

	queueCfg := queue.DefaultClientConfig(cfg.RabbitMQ.URL())
	queueCfg.MessageTTL = cfg.Worker.MessageTTL
	queueClient, err := queue.NewClient(ctx, queueCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	// Initialize services
	searchProvider := provider.NewHTTPProvider(provider.Config{
		SearchURL:      cfg.Provider.SearchURL,
		UserAgent:      cfg.Provider.UserAgent,
		Cookie:         cfg.Provider.Cookie,
		Timeout:        cfg.Provider.Timeout,
		RequestsPerSec: cfg.Provider.RequestsPerSec,
		Burst:          cfg.Provider.Burst,
	})
	paginator := usecase.NewPaginator(searchProvider, usecase.PaginatorConfig{PageCap: cfg.Fetch.PageCap})
	videoSvc := usecase.NewVideoService(paginator, store, usecase.VideoServiceConfig{CacheTTL: cfg.Fetch.CacheTTL})
	refreshSvc := usecase.NewRefreshService(
		videoSvc,
		usecase.NewSnapshotService(snapshotStore),
		usecase.RefreshServiceConfig{MaxRetries: cfg.Worker.MaxRetries},
	)

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// WaitGroup to track in-flight tasks
	var wg sync.WaitGroup

	if purger, ok := cache.AsPurger(store); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPurger(ctx, logger, purger, cfg.Worker.PurgeInterval)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming refresh tasks")
		err := queueClient.ConsumeRefreshTasks(ctx, func(task repository.RefreshTask) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing task",
				slog.String("task_id", task.TaskID.String()),
				slog.Any("keywords", task.Keywords),
				slog.Int("retry_count", task.RetryCount),
			)

			// In-flight tasks outlive the shutdown signal by up to the drain timeout.
			taskCtx, taskCancel := detach(ctx, cfg.Worker.ShutdownTimeout)
			defer taskCancel()

			if err := refreshSvc.ProcessTask(taskCtx, task); err != nil {
				logger.Error("task processing failed",
					slog.String("task_id", task.TaskID.String()),
					slog.Int("retry_count", task.RetryCount),
					slog.String("error", err.Error()),
				)
				return err
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop consuming new messages and stop the purger
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}

// detach returns a context that ignores parent cancellation for up to grace,
// then is cancelled. The returned cancel releases it early.
func detach(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			cancel()
		}
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

// runPurger sweeps expired cache entries until ctx is cancelled.
func runPurger(ctx context.Context, logger *slog.Logger, purger cache.Purger, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := purger.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("cache purge failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				logger.Info("purged expired cache entries", slog.Int64("removed", removed))
			}
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hszk-dev/clipscout/internal/api/handler"
	"github.com/hszk-dev/clipscout/internal/api/middleware"
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
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	store, closeCache := cache.Open(ctx, cfg)
	defer closeCache()

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

	// Snapshots and async refresh are optional; their endpoints answer 503 without them.
	var snapshotSvc usecase.SnapshotService
	if cfg.MinIO.Enabled {
		snapshotStore, err := storage.NewSnapshotStore(ctx, storage.ClientConfig{
			Endpoint:     cfg.MinIO.Endpoint,
			AccessKey:    cfg.MinIO.AccessKey,
			SecretKey:    cfg.MinIO.SecretKey,
			Bucket:       cfg.MinIO.Bucket,
			UseSSL:       cfg.MinIO.UseSSL,
			CreateBucket: cfg.MinIO.Create,
		})
		if err != nil {
			logger.Warn("snapshot storage unavailable", slog.String("error", err.Error()))
		} else {
			snapshotSvc = usecase.NewSnapshotService(snapshotStore)
			logger.Info("connected to MinIO", slog.String("bucket", snapshotStore.Bucket()))
		}
	}

	var refreshQueue repository.MessageQueue
	if cfg.RabbitMQ.Enabled {
		queueCfg := queue.DefaultClientConfig(cfg.RabbitMQ.URL())
		queueCfg.MessageTTL = cfg.Worker.MessageTTL
		queueClient, err := queue.NewClient(ctx, queueCfg)
		if err != nil {
			logger.Warn("refresh queue unavailable", slog.String("error", err.Error()))
		} else {
			defer queueClient.Close()
			refreshQueue = queueClient
			logger.Info("connected to RabbitMQ")
		}
	}

	videoHandler := handler.NewVideoHandler(videoSvc, snapshotSvc, refreshQueue, handler.VideoHandlerConfig{
		DefaultKeywords: cfg.Fetch.Keywords(),
		DefaultLimit:    cfg.Fetch.DefaultLimit,
		MaxLimit:        cfg.Fetch.MaxLimit,
	}, logger)

	r := setupRouter(logger, cfg.Server.AllowedOrigins, store, videoHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(logger *slog.Logger, origins []string, probe handler.CacheProbe, videos *handler.VideoHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", handler.Health(probe))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/videos", videos.List)
		r.Get("/videos/refresh", videos.Refresh)
		r.Post("/refresh", videos.Enqueue)
		r.Get("/snapshots", videos.Snapshot)
	})

	return r
}

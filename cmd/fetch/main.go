// Command fetch runs one cache-aware fetch and writes the result artifact.
//
//	fetch [-count 200] [-refresh] [-out tiktok_live.json] [-publish] [keyword[,keyword]...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hszk-dev/clipscout/internal/config"
	"github.com/hszk-dev/clipscout/internal/domain/model"
	"github.com/hszk-dev/clipscout/internal/infrastructure/cache"
	"github.com/hszk-dev/clipscout/internal/infrastructure/metrics"
	"github.com/hszk-dev/clipscout/internal/infrastructure/provider"
	"github.com/hszk-dev/clipscout/internal/infrastructure/storage"
	"github.com/hszk-dev/clipscout/internal/usecase"
)

type options struct {
	keywords []string
	count    int
	refresh  bool
	out      string
	publish  bool
	cache    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(opts.keywords) == 0 {
		opts.keywords = model.NormalizeKeywords(cfg.Fetch.Keywords())
	}
	cfg.Cache.Backend = resolveBackend(opts.cache, os.Getenv("CACHE_BACKEND"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	result, err := videoSvc.GetVideos(ctx, usecase.FetchRequest{
		Keywords:     opts.keywords,
		Limit:        opts.count,
		ForceRefresh: opts.refresh,
	})
	if err != nil {
		logger.Error("fetch rejected", slog.String("error", err.Error()))
		return 1
	}

	data, err := usecase.MarshalSnapshot(opts.keywords, result)
	if err != nil {
		logger.Error("failed to render artifact", slog.String("error", err.Error()))
		return 1
	}

	if err := writeArtifact(opts.out, data); err != nil {
		logger.Error("failed to write artifact",
			slog.String("path", opts.out),
			slog.String("error", err.Error()),
		)
		return 1
	}
	logger.Info("wrote artifact",
		slog.String("path", opts.out),
		slog.Int("videos", len(result.Videos)),
		slog.Bool("from_cache", result.FromCache),
	)

	if opts.publish {
		if err := publish(ctx, cfg, opts.keywords, result); err != nil {
			logger.Error("failed to publish snapshot", slog.String("error", err.Error()))
			return 1
		}
	}

	return exitCode(result)
}

func parseArgs(args []string, output io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.IntVar(&opts.count, "count", 200, "max videos to fetch")
	fs.BoolVar(&opts.refresh, "refresh", false, "bypass the cache")
	fs.StringVar(&opts.out, "out", "tiktok_live.json", "artifact output path")
	fs.BoolVar(&opts.publish, "publish", false, "also upload the artifact to object storage")
	fs.StringVar(&opts.cache, "cache", "", "cache backend (redis, postgres, bolt, none); defaults to CACHE_BACKEND or bolt")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.count < 1 {
		fmt.Fprintf(output, "-count must be positive, got %d\n", opts.count)
		return nil, fmt.Errorf("invalid count %d", opts.count)
	}

	// "cats,dogs" and "cats dogs" as separate arguments are equivalent.
	opts.keywords = model.SplitKeywords(strings.Join(fs.Args(), ","))
	return opts, nil
}

// resolveBackend picks the cache backend. The CLI defaults to the local bolt file.
func resolveBackend(flagValue, envValue string) string {
	switch {
	case flagValue != "":
		return flagValue
	case envValue != "":
		return envValue
	default:
		return metrics.CacheTypeBolt
	}
}

func writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func publish(ctx context.Context, cfg *config.Config, keywords []string, result *model.FetchResult) error {
	snapshotStore, err := storage.NewSnapshotStore(ctx, storage.ClientConfig{
		Endpoint:     cfg.MinIO.Endpoint,
		AccessKey:    cfg.MinIO.AccessKey,
		SecretKey:    cfg.MinIO.SecretKey,
		Bucket:       cfg.MinIO.Bucket,
		UseSSL:       cfg.MinIO.UseSSL,
		CreateBucket: cfg.MinIO.Create,
	})
	if err != nil {
		return err
	}

	key, err := usecase.NewSnapshotService(snapshotStore).Publish(ctx, keywords, nil, result)
	if err != nil {
		return err
	}
	slog.Info("published snapshot", slog.String("bucket", snapshotStore.Bucket()), slog.String("key", key))
	return nil
}

// exitCode is 1 only when the fetch found nothing and reported an error.
func exitCode(result *model.FetchResult) int {
	if len(result.Videos) == 0 && result.Error != "" {
		return 1
	}
	return 0
}

// Package app wires configuration into a ready-to-run ingestion pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"newsbuzz/internal/config"
	"newsbuzz/internal/dedup"
	"newsbuzz/internal/fetcher"
	"newsbuzz/internal/image"
	"newsbuzz/internal/ingest"
	"newsbuzz/internal/model"
	"newsbuzz/internal/normalize"
	"newsbuzz/internal/scheduler"
	"newsbuzz/internal/source"
	"newsbuzz/internal/storage"
)

// App holds the long-lived components shared by the commands.
type App struct {
	Store     *storage.SQLite
	Scheduler *scheduler.Scheduler
	Sources   []model.FeedSource

	redis *redis.Client
}

// New opens the store, loads the source registry and assembles the
// pipeline described by cfg.
func New(ctx context.Context, cfg *config.Config, client *http.Client, log *slog.Logger) (*App, error) {
	sources, err := loadSources(cfg.SourcesPath)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." && cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &App{Store: store, Sources: sources}

	var cache dedup.Cache
	if cfg.RedisAddr != "" {
		rc, err := dedup.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.redis = rc
		cache = dedup.NewRedisCache(rc, "newsbuzz:seen:", dedup.TTLFor(cfg.Retention()))
		log.Info("dedup cache enabled", "addr", cfg.RedisAddr)
	}

	images := image.NewResolver(client, cfg.PlaceholderImage,
		image.WithRemoteLookup(!cfg.DisableRemoteImages),
		image.WithRemoteTimeout(cfg.ImageTimeout),
		image.WithThrottle(image.NewThrottle(cfg.ImageFetchInterval)),
		image.WithUserAgent(cfg.UserAgent),
		image.WithLogger(log.With("component", "image")),
	)

	var normOpts []normalize.Option
	if cfg.TitlePrefixes {
		normOpts = append(normOpts, normalize.WithPrefixes(normalize.DefaultPrefixes))
	}

	coord := ingest.New(ingest.Deps{
		Fetcher:    fetcher.New(client, fetcher.WithTimeout(cfg.FetchTimeout), fetcher.WithUserAgent(cfg.UserAgent)),
		Images:     images,
		Normalizer: normalize.New(normOpts...),
		Gate:       dedup.New(store, cache, log.With("component", "dedup")),
		Store:      store,
	}, ingest.Options{
		Workers:    cfg.Workers,
		MaxEntries: cfg.MaxEntries,
		Shuffle:    cfg.ShuffleSources,
	}, log.With("component", "ingest"))

	a.Scheduler = scheduler.New(coord, sources, log.With("component", "scheduler"))
	a.Scheduler.SetRetention(store, cfg.Retention())
	return a, nil
}

// Close releases the store and the cache connection.
func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return a.Store.Close()
}

func loadSources(path string) ([]model.FeedSource, error) {
	if path == "" {
		return source.Default(), nil
	}
	sources, err := source.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	return sources, nil
}

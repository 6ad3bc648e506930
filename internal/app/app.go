// Package app builds the shared runtime pieces of the nameyourink commands
// from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/nameyourink/internal/config"
	"github.com/Sternrassler/nameyourink/pkg/cache"
	"github.com/Sternrassler/nameyourink/pkg/client"
	"github.com/Sternrassler/nameyourink/pkg/imagestore"
	"github.com/Sternrassler/nameyourink/pkg/logging"
	"github.com/Sternrassler/nameyourink/pkg/textstudio"
)

// Logger configures the global logger for a command.
func Logger(cfg *config.Config, service string) zerolog.Logger {
	return logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Output:  os.Stderr,
		Service: service,
	})
}

// PreviewCache is the preview cache together with the store backing it.
type PreviewCache struct {
	Cache *cache.Cache

	// Redis is set for the redis backend
	Redis      *redis.Client
	RedisStore *cache.RedisStore

	// Memory is set for the memory backend
	Memory *cache.MemoryStore
}

// Ping checks the backing store. Stores without a connection are always
// reachable.
func (p *PreviewCache) Ping(ctx context.Context) error {
	if p.RedisStore == nil {
		return nil
	}
	return p.RedisStore.Ping(ctx)
}

// Clear removes every entry of the current schema version and reports how
// many were removed.
func (p *PreviewCache) Clear(ctx context.Context) (int, error) {
	switch {
	case p.RedisStore != nil:
		return p.RedisStore.Purge(ctx, p.Cache.SchemaVersion())
	case p.Memory != nil:
		n := p.Memory.Len()
		p.Memory.Clear()
		return n, nil
	default:
		return 0, nil
	}
}

// Close releases the store connection.
func (p *PreviewCache) Close() error {
	if p.Redis == nil {
		return nil
	}
	return p.Redis.Close()
}

// NewPreviewCache opens the cache backend selected by cfg.Cache.Backend.
// An unreachable Redis is logged, not fatal: the cache degrades to misses.
func NewPreviewCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*PreviewCache, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := cache.NewRedisStore(rdb)
		if err := store.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, previews will not be cached until it recovers")
		} else {
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		}
		return &PreviewCache{
			Cache:      cache.New(store, cfg.Cache.SchemaVersion, logger),
			Redis:      rdb,
			RedisStore: store,
		}, nil

	case config.CacheBackendMemory:
		store := cache.NewMemoryStore(cfg.Cache.MaxEntries)
		return &PreviewCache{
			Cache:  cache.New(store, cfg.Cache.SchemaVersion, logger),
			Memory: store,
		}, nil

	case config.CacheBackendNone:
		return &PreviewCache{}, nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// NewTextStudio creates the upstream rendering client.
func NewTextStudio(cfg *config.Config) (*textstudio.Client, error) {
	tsCfg := textstudio.DefaultConfig(cfg.TextStudio.APIKey)
	if cfg.TextStudio.URL != "" {
		tsCfg.URL = cfg.TextStudio.URL
	}
	if cfg.TextStudio.Timeout > 0 {
		tsCfg.Timeout = cfg.TextStudio.Timeout
	}
	if cfg.TextStudio.MaxAttempts > 0 {
		tsCfg.Retry.MaxAttempts = cfg.TextStudio.MaxAttempts
	}
	if cfg.TextStudio.InitialBackoff > 0 {
		tsCfg.Retry.InitialBackoff = cfg.TextStudio.InitialBackoff
	}
	return textstudio.New(tsCfg)
}

// NewBackendClient creates the client of the nameyourink backend.
func NewBackendClient(cfg *config.Config) (*client.Client, error) {
	c := client.DefaultConfig(cfg.Preview.BackendURL)
	if cfg.Preview.Timeout > 0 {
		c.Timeout = cfg.Preview.Timeout
	}
	return client.New(c)
}

// NewArchive returns the object storage sink for generated images, or nil
// when storage is disabled.
func NewArchive(ctx context.Context, cfg *config.Config) (imagestore.Sink, error) {
	if !cfg.Storage.Enabled {
		return nil, nil
	}
	sink, err := imagestore.NewMinioSink(ctx, imagestore.MinioConfig{
		Endpoint:   cfg.Storage.Endpoint,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		BucketName: cfg.Storage.BucketName,
		UseSSL:     cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// Styles converts the configured catalog to the wire type.
func Styles(cfg *config.Config) []client.Style {
	styles := make([]client.Style, 0, len(cfg.Styles))
	for _, s := range cfg.Styles {
		styles = append(styles, client.Style{ID: client.StyleID(s.ID), Name: s.Name})
	}
	return styles
}

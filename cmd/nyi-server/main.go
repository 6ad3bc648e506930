// Command nyi-server runs the nameyourink backend: the style catalog, cached
// previews and image generation through TextStudio.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/nameyourink/internal/app"
	"github.com/Sternrassler/nameyourink/internal/config"
	"github.com/Sternrassler/nameyourink/internal/server"
	"github.com/Sternrassler/nameyourink/pkg/preview"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := app.Logger(cfg, "nyi-server")

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, previewCache, err := buildServer(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer previewCache.Close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("cache", cfg.Cache.Backend).
			Int("styles", len(cfg.Styles)).
			Msg("Starting nameyourink server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	srv.Wait()
}

// buildServer wires the HTTP API from cfg. The returned cache must be closed
// by the caller.
func buildServer(ctx context.Context, cfg *config.Config) (*server.Server, *app.PreviewCache, error) {
	logger := log.With().Str("component", "nyi-server").Logger()

	textStudio, err := app.NewTextStudio(cfg)
	if err != nil {
		return nil, nil, err
	}

	previewCache, err := app.NewPreviewCache(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []preview.FetcherOption{preview.WithCacheKey(preview.TextCacheKey)}
	if cfg.Preview.Dedupe {
		opts = append(opts, preview.WithDedupe())
	}
	fetcher := preview.NewFetcher(textStudio, previewCache.Cache, opts...)

	archive, err := app.NewArchive(ctx, cfg)
	if err != nil {
		previewCache.Close()
		return nil, nil, err
	}
	if archive != nil {
		logger.Info().Str("bucket", cfg.Storage.BucketName).Msg("Archiving generated images")
	}

	srv, err := server.New(server.Options{
		Styles:         app.Styles(cfg),
		Generator:      textStudio,
		Previews:       fetcher,
		Ready:          previewCache,
		Archive:        archive,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		previewCache.Close()
		return nil, nil, err
	}
	return srv, previewCache, nil
}

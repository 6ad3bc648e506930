// Command nyi-previews loads a preview of every style from the nameyourink
// backend through the shared preview cache, or generates a single image.
//
// Usage:
//
//	nyi-previews [-config file] [-backend url] [-concurrency n] [-text ABC] [-out dir [-thumb px]]
//	nyi-previews -generate "Hello" -style 261 [-out dir]
//	nyi-previews -clear-cache
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/nameyourink/internal/app"
	"github.com/Sternrassler/nameyourink/internal/config"
	"github.com/Sternrassler/nameyourink/pkg/client"
	"github.com/Sternrassler/nameyourink/pkg/imagestore"
	"github.com/Sternrassler/nameyourink/pkg/preview"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Msg("nyi-previews failed")
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	backend     string
	concurrency int
	text        string
	out         string
	thumb       int
	generate    string
	style       string
	clearCache  bool
	cache       string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("nyi-previews", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&o.backend, "backend", "", "backend base URL (overrides preview.backend_url)")
	fs.IntVar(&o.concurrency, "concurrency", 0, "number of concurrent preview requests")
	fs.StringVar(&o.text, "text", "", "text rendered in every style")
	fs.StringVar(&o.out, "out", "", "directory to save images to")
	fs.IntVar(&o.thumb, "thumb", 0, "fit saved previews into an NxN box (0 keeps full size)")
	fs.StringVar(&o.generate, "generate", "", "generate a single image with this text")
	fs.StringVar(&o.style, "style", "", "style id for -generate")
	fs.BoolVar(&o.clearCache, "clear-cache", false, "remove all cached previews and exit")
	fs.StringVar(&o.cache, "cache", "", "cache backend: redis, memory or none")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.generate != "" && o.style == "" {
		return o, errors.New("-generate requires -style")
	}
	return o, nil
}

func (o options) apply(cfg *config.Config) {
	if o.backend != "" {
		cfg.Preview.BackendURL = o.backend
	}
	if o.concurrency != 0 {
		cfg.Preview.Concurrency = o.concurrency
	}
	if o.text != "" {
		cfg.Preview.Text = o.text
	}
	if o.cache != "" {
		cfg.Cache.Backend = o.cache
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := app.Logger(cfg, "nyi-previews")

	backend, err := app.NewBackendClient(cfg)
	if err != nil {
		return err
	}

	if opts.generate != "" {
		return generate(ctx, backend, opts, stdout)
	}

	previewCache, err := app.NewPreviewCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer previewCache.Close()

	if opts.clearCache {
		n, err := previewCache.Clear(ctx)
		if err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(stdout, "removed %d cached previews\n", n)
		return nil
	}

	return loadPreviews(ctx, cfg, backend, previewCache, opts.out, opts.thumb, logger, stdout)
}

func loadPreviews(ctx context.Context, cfg *config.Config, backend *client.Client, previewCache *app.PreviewCache, out string, thumb int, logger zerolog.Logger, stdout io.Writer) error {
	fetchOpts := []preview.FetcherOption{preview.WithCacheKey(preview.TextCacheKey)}
	if cfg.Preview.Dedupe {
		fetchOpts = append(fetchOpts, preview.WithDedupe())
	}
	fetcher := preview.NewFetcher(backend, previewCache.Cache, fetchOpts...)

	loader, err := preview.NewLoader(fetcher, backend, preview.LoaderConfig{
		Concurrency: cfg.Preview.Concurrency,
		PreviewText: cfg.Preview.Text,
	})
	if err != nil {
		return err
	}

	sink := newRowSink(ctx, stdout, out, thumb, logger)
	_, stats, err := loader.LoadStyles(ctx, sink)
	if err != nil {
		var be *client.BackendError
		if errors.As(err, &be) {
			return fmt.Errorf("%s: %w", be.UserMessage(), err)
		}
		return err
	}

	fmt.Fprintf(stdout, "\n%d previews: %d ok, %d failed, %d from cache in %s\n",
		stats.Items, stats.Succeeded, stats.Failed, stats.CacheHits, stats.Duration.Round(time.Millisecond))
	return nil
}

func generate(ctx context.Context, backend *client.Client, opts options, stdout io.Writer) error {
	dataURL, err := backend.Generate(ctx, opts.generate, opts.style)
	if err != nil {
		var be *client.BackendError
		if errors.As(err, &be) {
			return fmt.Errorf("%s: %w", be.UserMessage(), err)
		}
		return err
	}

	img, err := imagestore.DecodeDataURL(dataURL)
	if err != nil {
		return err
	}

	dir := opts.out
	if dir == "" {
		dir = "."
	}
	path, err := imagestore.NewFileSink(dir).Save(ctx, imagestore.FileName(time.Now()), img.Data, img.MediaType)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "saved %s (%s)\n", path, describe(img.Data))
	return nil
}

// describe summarizes an image, falling back to its size when it cannot be
// decoded.
func describe(data []byte) string {
	info, err := imagestore.Describe(data)
	if err != nil {
		return fmt.Sprintf("%d bytes", len(data))
	}
	return fmt.Sprintf("%s %dx%d, %d bytes", info.Format, info.Width, info.Height, info.Bytes)
}

// rowSink prints one row per delivered item as it arrives and optionally
// saves the preview images.
type rowSink struct {
	ctx    context.Context
	files  *imagestore.FileSink
	thumb  int
	logger zerolog.Logger

	mu sync.Mutex
	w  io.Writer
}

func newRowSink(ctx context.Context, w io.Writer, out string, thumb int, logger zerolog.Logger) *rowSink {
	s := &rowSink{ctx: ctx, w: w, thumb: thumb, logger: logger}
	if out != "" {
		s.files = imagestore.NewFileSink(out)
	}
	return s
}

func (s *rowSink) OnPreview(index int, item preview.WorkItem, payload string) {
	detail := fmt.Sprintf("%d bytes", len(payload))

	if img, err := imagestore.DecodeDataURL(payload); err == nil {
		detail = describe(img.Data)
		if s.files != nil {
			detail += s.save(item, img)
		}
	}

	s.row(index, item.ID, "ok", detail)
}

func (s *rowSink) save(item preview.WorkItem, img *imagestore.DataURL) string {
	data, ext := img.Data, img.Extension()
	if s.thumb > 0 {
		thumb, err := imagestore.Thumbnail(data, s.thumb, s.thumb)
		if err != nil {
			s.logger.Warn().Err(err).Str("style_id", item.ID).Msg("Cannot thumbnail preview, saving full size")
		} else {
			data, ext = thumb, ".png"
		}
	}

	path, err := s.files.Save(s.ctx, "preview_"+item.ID+ext, data, img.MediaType)
	if err != nil {
		s.logger.Warn().Err(err).Str("style_id", item.ID).Msg("Failed to save preview")
		return ""
	}
	return " -> " + path
}

func (s *rowSink) OnPreviewError(index int, item preview.WorkItem, err error) {
	msg := err.Error()
	var be *client.BackendError
	if errors.As(err, &be) {
		msg = be.UserMessage()
	}
	s.row(index, item.ID, "failed", msg)
}

func (s *rowSink) row(index int, id, status, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%3d  %-8s %-7s %s\n", index, id, status, detail)
}

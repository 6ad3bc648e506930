// Package server implements the nameyourink backend HTTP API: the style
// catalog, cached previews and single-shot generation through TextStudio.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/nameyourink/pkg/client"
	"github.com/Sternrassler/nameyourink/pkg/imagestore"
	"github.com/Sternrassler/nameyourink/pkg/metrics"
	"github.com/Sternrassler/nameyourink/pkg/preview"
	"github.com/Sternrassler/nameyourink/pkg/textstudio"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nyi_http_requests_total",
		Help: "Total HTTP requests served by path and status code",
	}, []string{"path", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nyi_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by path",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"path"})

	archiveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nyi_archive_total",
		Help: "Generated images archived to object storage by outcome",
	}, []string{"outcome"})
)

// errMissingFields is the reply to requests without text or style id.
const errMissingFields = "Missing text or styleId"

// Generator renders a single image. *textstudio.Client implements it.
type Generator interface {
	Generate(ctx context.Context, req textstudio.Request) (*textstudio.Response, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	// Styles is the catalog served by /styles
	Styles []client.Style

	// Generator serves /generate
	Generator Generator

	// Previews serves /preview, usually a cache-first preview.Fetcher
	Previews preview.ItemFetcher

	// Ready is pinged by /ready; nil means always ready
	Ready Pinger

	// Archive receives a copy of every generated image; nil disables archiving
	Archive imagestore.Sink

	// RequestTimeout bounds each upstream call (default 45s)
	RequestTimeout time.Duration

	Logger *zerolog.Logger
}

// Server is the backend HTTP API.
type Server struct {
	styles         []client.Style
	generator      Generator
	previews       preview.ItemFetcher
	ready          Pinger
	archive        imagestore.Sink
	requestTimeout time.Duration
	logger         zerolog.Logger

	archiveWG sync.WaitGroup
}

// New creates a server.
func New(opts Options) (*Server, error) {
	if opts.Generator == nil {
		return nil, errors.New("generator required")
	}
	if opts.Previews == nil {
		return nil, errors.New("preview fetcher required")
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	logger := log.With().Str("component", "server").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Server{
		styles:         opts.Styles,
		generator:      opts.Generator,
		previews:       opts.Previews,
		ready:          opts.Ready,
		archive:        opts.Archive,
		requestTimeout: timeout,
		logger:         logger,
	}, nil
}

// Routes returns the HTTP handler for all endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/styles", s.handleStyles)
	mux.HandleFunc("/preview", s.handlePreview)
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", metrics.Handler())
	return s.logMiddleware(mux)
}

// Wait blocks until pending archive uploads have finished.
func (s *Server) Wait() {
	s.archiveWG.Wait()
}

type stylesResp struct {
	Success bool           `json:"success"`
	Styles  []client.Style `json:"styles"`
}

type imageResp struct {
	Success bool   `json:"success"`
	DataURL string `json:"dataUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

type generateReq struct {
	Text    string         `json:"text"`
	StyleID client.StyleID `json:"styleId"`
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	styles := s.styles
	if styles == nil {
		styles = []client.Style{}
	}
	writeJSON(w, http.StatusOK, stylesResp{Success: true, Styles: styles})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	styleID := strings.TrimSpace(r.URL.Query().Get("styleId"))
	text := r.URL.Query().Get("text")
	if styleID == "" || strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, errMissingFields)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	result := s.previews.Fetch(ctx, preview.WorkItem{ID: styleID, DisplayText: text})
	if !result.OK() {
		s.logger.Warn().
			Err(result.Err).
			Str("style_id", styleID).
			Msg("Preview failed")
		writeError(w, http.StatusBadGateway, publicMessage(result.Err))
		return
	}

	writeJSON(w, http.StatusOK, imageResp{Success: true, DataURL: result.Payload})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req generateReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	styleID := req.StyleID.String()
	if strings.TrimSpace(req.Text) == "" || styleID == "" {
		writeError(w, http.StatusBadRequest, errMissingFields)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	resp, err := s.generator.Generate(ctx, textstudio.Request{Text: req.Text, StyleID: styleID})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("style_id", styleID).
			Msg("Error calling TextStudio API")
		writeError(w, http.StatusBadGateway, publicMessage(err))
		return
	}

	if resp.Success && resp.DataURL != "" && s.archive != nil {
		s.archiveAsync(styleID, resp.DataURL)
	}

	writeJSON(w, http.StatusOK, imageResp{Success: resp.Success, DataURL: resp.DataURL, Error: resp.Error})
}

// archiveAsync stores a copy of a generated image without delaying the reply.
func (s *Server) archiveAsync(styleID, dataURL string) {
	s.archiveWG.Add(1)
	go func() {
		defer s.archiveWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		img, err := imagestore.DecodeDataURL(dataURL)
		if err != nil {
			archiveTotal.WithLabelValues("invalid").Inc()
			s.logger.Warn().Err(err).Str("style_id", styleID).Msg("Generated image is not a data URL")
			return
		}

		name, err := s.archive.Save(ctx, imagestore.ObjectName(styleID, img.Extension()), img.Data, img.MediaType)
		if err != nil {
			archiveTotal.WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Str("style_id", styleID).Msg("Failed to archive generated image")
			return
		}

		archiveTotal.WithLabelValues("stored").Inc()
		s.logger.Debug().Str("object", name).Msg("Archived generated image")
	}()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.ready.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "Not Ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// publicMessage turns an upstream error into the message sent to clients.
func publicMessage(err error) string {
	var apiErr *textstudio.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "upstream timeout"
	}
	return "upstream request failed"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, imageResp{Success: false, Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := routeLabel(r.URL.Path)
		elapsed := time.Since(start)
		httpRequestsTotal.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(path).Observe(elapsed.Seconds())

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("HTTP request")
	})
}

// routeLabel bounds the cardinality of the path label.
func routeLabel(path string) string {
	switch path {
	case "/styles", "/preview", "/generate", "/health", "/ready", "/metrics":
		return path
	default:
		return "other"
	}
}

// Package textstudio is a client for the TextStudio rendering API, the
// upstream that turns a text and a style id into a rendered image.
package textstudio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultURL is the public TextStudio generate endpoint.
const DefaultURL = "https://api.textstudio.com/generate"

const maxBodyBytes = 32 << 20

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nyi_textstudio_requests_total",
		Help: "Total TextStudio requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nyi_textstudio_request_duration_seconds",
		Help:    "TextStudio request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Config holds the client configuration.
type Config struct {
	// URL of the generate endpoint
	URL string

	// APIKey sent as a Bearer token
	APIKey string

	// Timeout per attempt (ignored when HTTPClient is set)
	Timeout time.Duration

	// Retry controls retries of network and 5xx failures
	Retry RetryConfig

	// HTTPClient overrides the default client (for testing)
	HTTPClient *http.Client
}

// DefaultConfig returns a default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		URL:     DefaultURL,
		APIKey:  apiKey,
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// Request describes one render. Empty optional fields take the defaults
// used for transparent PNG previews.
type Request struct {
	Text    string
	StyleID string

	Background  string // default "transparent"
	Format      string // default "png"
	Quality     string // default "lite"
	Output      string // default "dataUrl"
	Padding     int    // default 5; negative means 0
	AspectRatio string // default "fit"
}

func (r Request) values() url.Values {
	v := url.Values{}
	v.Set("text", r.Text)
	v.Set("styleId", r.StyleID)
	v.Set("background", orDefault(r.Background, "transparent"))
	v.Set("format", orDefault(r.Format, "png"))
	v.Set("quality", orDefault(r.Quality, "lite"))
	v.Set("output", orDefault(r.Output, "dataUrl"))

	padding := r.Padding
	switch {
	case padding == 0:
		padding = 5
	case padding < 0:
		padding = 0
	}
	v.Set("padding", strconv.Itoa(padding))
	v.Set("aspectRatio", orDefault(r.AspectRatio, "fit"))
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Response is the TextStudio reply, forwarded unchanged to callers.
type Response struct {
	Success bool   `json:"success"`
	DataURL string `json:"dataUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client calls the TextStudio API.
type Client struct {
	httpClient *http.Client
	endpoint   *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new TextStudio client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}

	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse textstudio url: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("textstudio url must be http or https (got %q)", cfg.URL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		config:     cfg,
		logger:     log.With().Str("component", "textstudio").Logger(),
	}, nil
}

// Generate renders req. Network failures and 5xx replies are retried
// according to Config.Retry; 4xx replies are returned immediately as
// *APIError. A 2xx reply is returned as-is, including success=false.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Text) == "" || strings.TrimSpace(req.StyleID) == "" {
		return nil, ErrInvalidRequest
	}

	var out *Response
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		resp, err := c.attempt(ctx, req)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Preview renders text in styleID and returns the data URL. Unlike Generate,
// an unsuccessful reply is returned as an *APIError so that it can serve as
// a preview.Remote.
func (c *Client) Preview(ctx context.Context, styleID, text string) (string, error) {
	resp, err := c.Generate(ctx, Request{Text: text, StyleID: styleID})
	if err != nil {
		return "", err
	}
	if !resp.Success || resp.Error != "" {
		return "", &APIError{StatusCode: http.StatusOK, Class: ErrorClassClient, Message: resp.Error, Err: ErrUnsuccessful}
	}
	if resp.DataURL == "" {
		return "", &APIError{StatusCode: http.StatusOK, Class: ErrorClassDecode, Message: "missing dataUrl"}
	}
	return resp.DataURL, nil
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	u := *c.endpoint
	u.RawQuery = req.values().Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{Class: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read body", Err: err}
	}

	if class := classify(resp.StatusCode); class != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    upstreamMessage(data),
		}
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Class: ErrorClassDecode, Message: "decode body", Err: err}
	}

	c.logger.Debug().
		Str("style_id", req.StyleID).
		Bool("success", out.Success).
		Dur("duration", time.Since(start)).
		Msg("TextStudio request completed")

	return &out, nil
}

// maxUpstreamMessage caps the characters kept from a non-JSON error body.
const maxUpstreamMessage = 200

// upstreamMessage extracts a readable message from an error body.
func upstreamMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	msg := strings.TrimSpace(string(data))
	if utf8.RuneCountInString(msg) > maxUpstreamMessage {
		msg = string([]rune(msg)[:maxUpstreamMessage])
	}
	return msg
}

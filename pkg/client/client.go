// Package client provides the HTTP client for the nameyourink backend
// (/styles, /preview, /generate) with response validation and metrics.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for backend client operations.
var (
	backendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nyi_backend_requests_total",
		Help: "Total backend requests by endpoint and status",
	}, []string{"endpoint", "status"})

	backendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nyi_backend_request_duration_seconds",
		Help:    "Backend request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})
)

// Backend endpoint paths.
const (
	EndpointStyles   = "/styles"
	EndpointPreview  = "/preview"
	EndpointGenerate = "/generate"
)

// maxBodyBytes bounds how much of a response body is read. Data URLs of
// rendered images are large but well below this.
const maxBodyBytes = 32 << 20

// Client talks to the nameyourink backend.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the backend, e.g. "http://localhost:8080"
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout per request (ignored when HTTPClient is set)
	Timeout time.Duration

	// HTTPClient overrides the default client (for testing)
	HTTPClient *http.Client
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "nameyourink/0.1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new backend client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
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
		baseURL:    base,
		config:     cfg,
		logger:     log.With().Str("component", "backend-client").Logger(),
	}, nil
}

// Styles fetches the style catalog.
func (c *Client) Styles(ctx context.Context) ([]Style, error) {
	req, err := c.newRequest(ctx, http.MethodGet, EndpointStyles, nil, nil)
	if err != nil {
		return nil, err
	}

	var body stylesResponse
	status, err := c.do(req, EndpointStyles, &body)
	if err != nil {
		return nil, err
	}

	if status >= 400 || !body.Success || body.Error != "" {
		return nil, &BackendError{
			Endpoint:   EndpointStyles,
			StatusCode: status,
			Class:      ErrorClassRejected,
			Message:    body.Error,
		}
	}

	for i, s := range body.Styles {
		if s.ID == "" {
			return nil, &BackendError{
				Endpoint:   EndpointStyles,
				StatusCode: status,
				Class:      ErrorClassMalformed,
				Message:    fmt.Sprintf("style %d has no id", i),
			}
		}
	}

	return body.Styles, nil
}

// Preview fetches the rendered preview of text in a style and returns its
// data URL.
func (c *Client) Preview(ctx context.Context, styleID, text string) (string, error) {
	query := url.Values{}
	query.Set("styleId", styleID)
	query.Set("text", text)

	req, err := c.newRequest(ctx, http.MethodGet, EndpointPreview, query, nil)
	if err != nil {
		return "", err
	}

	return c.doImage(req, EndpointPreview)
}

// Generate renders text in a style and returns the data URL of the result.
func (c *Client) Generate(ctx context.Context, text, styleID string) (string, error) {
	payload, err := json.Marshal(GenerateRequest{Text: text, StyleID: StyleID(styleID)})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, EndpointGenerate, nil, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doImage(req, EndpointGenerate)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + endpoint
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	return req, nil
}

// doImage executes an image request and validates the image envelope.
func (c *Client) doImage(req *http.Request, endpoint string) (string, error) {
	var body ImageResponse
	status, err := c.do(req, endpoint, &body)
	if err != nil {
		return "", err
	}

	if status >= 400 || !body.Success || body.Error != "" {
		return "", &BackendError{
			Endpoint:   endpoint,
			StatusCode: status,
			Class:      ErrorClassRejected,
			Message:    body.Error,
		}
	}
	if body.DataURL == "" {
		return "", &BackendError{
			Endpoint:   endpoint,
			StatusCode: status,
			Class:      ErrorClassMalformed,
			Message:    "missing dataUrl",
		}
	}

	return body.DataURL, nil
}

// do executes req and decodes the JSON body into out. It returns the HTTP
// status; transport and decoding failures are returned as *BackendError.
func (c *Client) do(req *http.Request, endpoint string, out any) (int, error) {
	start := time.Now()
	defer func() {
		backendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		backendRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("Backend request failed")
		return 0, &BackendError{
			Endpoint: endpoint,
			Class:    ErrorClassNetwork,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	backendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, &BackendError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		class := ErrorClassMalformed
		if resp.StatusCode >= 500 {
			// A proxy or crashed server answering with HTML: the backend
			// itself is unavailable.
			class = ErrorClassNetwork
		}
		return resp.StatusCode, &BackendError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    "decode body",
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Backend request completed")

	return resp.StatusCode, nil
}

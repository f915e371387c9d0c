// Package client provides the GitHub REST HTTP client used as the transport
// beneath the pagination ETag cache: rate limit gating, retries, error
// classification, and 304 Not Modified surfaced as a normal response.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/gh-etag-cache/pkg/logging"
	"github.com/Sternrassler/gh-etag-cache/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultMediaType is sent as Accept when the caller passes no media type.
	DefaultMediaType = "application/vnd.github+json"

	// DefaultAPIVersion is sent as X-GitHub-Api-Version.
	DefaultAPIVersion = "2022-11-28"
)

// Prometheus metrics for GitHub client operations.
var (
	githubRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "github_requests_total",
		Help: "Total GitHub requests by status",
	}, []string{"status"})

	githubRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "github_request_duration_seconds",
		Help:    "GitHub request duration in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	githubErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "github_errors_total",
		Help: "Total GitHub errors by class",
	}, []string{"class"})
)

// Client is a GitHub REST client for paginated list endpoints.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis enables shared rate limit tracking when set (optional).
	Redis redis.Cmdable

	// User-Agent header (REQUIRED by GitHub)
	UserAgent string

	// Token is sent as a bearer token when set.
	Token string

	// APIVersion is sent as X-GitHub-Api-Version.
	APIVersion string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry overrides; zero values keep the per-class defaults.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:  userAgent,
		APIVersion: DefaultAPIVersion,
		Timeout:    30 * time.Second,
	}
}

// New creates a new GitHub client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("max_attempts must be >= 0 (got %d)", cfg.MaxAttempts)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := logging.NewLogger(logging.ComponentClient)

	var rateLimiter *ratelimit.Tracker
	if cfg.Redis != nil {
		rateLimiter = ratelimit.NewTracker(cfg.Redis, logging.NewLogger(logging.ComponentRateLimit))
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rateLimiter,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Fetch issues a GET for rawURL with Accept set to mediaType and the extra
// headers merged in. A 304 comes back as a Response with NotModified() true.
// Any other non-2xx status, and network failures, are returned as *APIError
// after retries.
func (c *Client) Fetch(ctx context.Context, rawURL, mediaType string, header http.Header) (*Response, error) {
	startTime := time.Now()
	defer func() {
		githubRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().Str("url", rawURL).Msg("Request blocked by rate limiter")
			githubRequestsTotal.WithLabelValues("rate_limited").Inc()
			return nil, ratelimit.ErrBlocked
		}
	}

	if mediaType == "" {
		mediaType = DefaultMediaType
	}

	var result *Response
	err := retryWithBackoff(ctx, c.logger, c.retryPolicy, func() error {
		resp, err := c.do(ctx, rawURL, mediaType, header)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Get fetches rawURL with the default media type.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Fetch(ctx, rawURL, DefaultMediaType, nil)
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, rawURL, mediaType string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &APIError{
			ErrorClass: ErrorClassClient,
			Message:    "create request",
			URL:        rawURL,
			Err:        err,
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", mediaType)
	if c.config.APIVersion != "" {
		req.Header.Set("X-GitHub-Api-Version", c.config.APIVersion)
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	for key, values := range header {
		req.Header.Del(key)
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	c.logger.Debug().
		Str("url", rawURL).
		Str("if_none_match", req.Header.Get("If-None-Match")).
		Msg("Executing GitHub request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error().Err(err).Str("url", rawURL).Msg("HTTP request failed")
		githubErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		githubRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			URL:        rawURL,
			Err:        err,
		}
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	status := strconv.Itoa(resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotModified:
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		resp.Body = http.NoBody
		githubRequestsTotal.WithLabelValues(status).Inc()
		return newResponse(rawURL, resp), nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		githubRequestsTotal.WithLabelValues(status).Inc()
		return newResponse(rawURL, resp), nil
	}

	errClass := classifyStatus(resp.StatusCode, resp.Header)
	message := readErrorMessage(resp)
	resp.Body.Close()

	githubErrorsTotal.WithLabelValues(string(errClass)).Inc()
	githubRequestsTotal.WithLabelValues(status).Inc()

	c.logger.Warn().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Str("error_class", string(errClass)).
		Msg("GitHub request error")

	return nil, &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: errClass,
		Message:    message,
		URL:        rawURL,
	}
}

// retryPolicy applies the configured overrides to the per-class defaults.
func (c *Client) retryPolicy(errorClass ErrorClass) RetryConfig {
	config := RetryConfigForErrorClass(errorClass)
	if c.config.MaxAttempts > 0 {
		config.MaxAttempts = c.config.MaxAttempts
	}
	if c.config.InitialBackoff > 0 {
		config.InitialBackoff = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		config.MaxBackoff = c.config.MaxBackoff
	}
	return config
}

// readErrorMessage returns GitHub's JSON "message" field, or the status line.
func readErrorMessage(resp *http.Response) string {
	var payload struct {
		Message string `json:"message"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return resp.Status
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Package client provides the OTX HTTP fetcher with bounded retry,
// exponential backoff and an optional page cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/otx-pulse-etl/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultAPIKeyHeader is the header OTX reads the API key from.
const DefaultAPIKeyHeader = "X-OTX-API-KEY"

// errorBodyLimit bounds how much of an error response body is logged.
const errorBodyLimit = 200

// Prometheus metrics for OTX client operations.
var (
	otxRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otx_requests_total",
		Help: "Total OTX requests by status",
	}, []string{"status"})

	otxRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "otx_request_duration_seconds",
		Help:    "OTX fetch duration in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// PageCache stores raw response bodies keyed by request URL.
type PageCache interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Set(ctx context.Context, url string, body []byte, ttl time.Duration) error
}

// Config holds the client configuration.
type Config struct {
	// APIKey is sent on every request (REQUIRED).
	APIKey string

	// APIKeyHeader defaults to DefaultAPIKeyHeader.
	APIKeyHeader string

	// Headers are added to every request.
	Headers map[string]string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// Retry
	Retry RetryConfig

	// Caching (optional). Bodies are cached only when CacheTTL > 0.
	Cache    PageCache
	CacheTTL time.Duration

	// Sleep replaces the backoff wait (for testing). Defaults to a
	// context-aware timer.
	Sleep SleepFunc

	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration for the given API key.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:       apiKey,
		APIKeyHeader: DefaultAPIKeyHeader,
		Timeout:      20 * time.Second,
		Retry:        DefaultRetryConfig(),
	}
}

// Client fetches and decodes JSON pages from the OTX API.
type Client struct {
	httpClient *http.Client
	headers    http.Header
	retry      RetryConfig
	cache      PageCache
	cacheTTL   time.Duration
	sleep      SleepFunc
	logger     zerolog.Logger
}

// New creates a new OTX client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BackoffFactor < 0 {
		return nil, fmt.Errorf("backoff_factor must be >= 0 (got %s)", cfg.Retry.BackoffFactor)
	}

	keyHeader := cfg.APIKeyHeader
	if keyHeader == "" {
		keyHeader = DefaultAPIKeyHeader
	}
	headers := http.Header{}
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	headers.Set(keyHeader, cfg.APIKey)
	headers.Set("Accept", "application/json")

	logger := log.With().Str("component", "otx-client").Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "otx-client").Logger()
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		headers:    headers,
		retry:      cfg.Retry,
		cache:      cfg.Cache,
		cacheTTL:   cfg.CacheTTL,
		sleep:      sleep,
		logger:     logger,
	}, nil
}

// Fetch retrieves url and returns the decoded JSON payload.
// The boolean is false when the fetch failed terminally: a non-transient
// status, retry exhaustion or cancellation. Failures are logged, never
// returned.
func (c *Client) Fetch(ctx context.Context, url string) (any, bool) {
	startTime := time.Now()
	defer func() {
		otxRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	if payload, ok := c.fromCache(ctx, url); ok {
		return payload, true
	}

	var (
		payload any
		body    []byte
	)

	class, err := c.retryWithBackoff(ctx, func() (ErrorClass, error) {
		var (
			class ErrorClass
			err   error
		)
		payload, body, class, err = c.attempt(ctx, url)
		return class, err
	})
	if err != nil {
		event := c.logger.Error().Err(err).Str("url", url).Str("error_class", string(class))
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
			event = event.Int("status", fetchErr.StatusCode)
		}
		if class == ErrorClassHTTP {
			event.Msg("HTTP error, abandoning fetch")
		} else {
			event.Int("attempts", c.retry.MaxRetries+1).Msg("Failed to fetch")
		}
		return nil, false
	}

	c.toCache(ctx, url, body)
	return payload, true
}

// attempt performs a single GET and classifies its outcome.
func (c *Client) attempt(ctx context.Context, url string) (any, []byte, ErrorClass, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		// A malformed URL will not improve on retry.
		return nil, nil, ErrorClassHTTP, &FetchError{ErrorClass: ErrorClassHTTP, Message: "create request", Err: err}
	}
	req.Header = c.headers.Clone()

	c.logger.Debug().Str("url", url).Msg("Executing OTX request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		otxRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, nil, ErrorClassNetwork, &FetchError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	otxRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, nil, ErrorClassNetwork, &FetchError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
		}
		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, nil, ErrorClassDecode, &FetchError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassDecode, Message: "decode body", Err: err}
		}
		return payload, body, "", nil

	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil, ErrorClassRateLimit, &FetchError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassRateLimit, Message: resp.Status}

	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, nil, ErrorClassHTTP, &FetchError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassHTTP, Message: string(snippet)}
	}
}

func (c *Client) fromCache(ctx context.Context, url string) (any, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return nil, false
	}

	body, err := c.cache.Get(ctx, url)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("url", url).Msg("Cache get error")
		}
		return nil, false
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Discarding undecodable cache entry")
		return nil, false
	}

	c.logger.Debug().Str("url", url).Msg("Serving page from cache")
	return payload, true
}

func (c *Client) toCache(ctx context.Context, url string, body []byte) {
	if c.cache == nil || c.cacheTTL <= 0 || body == nil {
		return
	}
	if err := c.cache.Set(ctx, url, body, c.cacheTTL); err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Failed to cache page")
		return
	}
	c.logger.Debug().Str("url", url).Dur("ttl", c.cacheTTL).Msg("Cached page")
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

package client

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	otxRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otx_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	otxRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "otx_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	}, []string{"error_class"})

	otxRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otx_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BackoffFactor is the wait before the first retry. Each following
	// retry doubles it.
	BackoffFactor time.Duration

	// MaxBackoff caps a single wait. Zero means uncapped.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BackoffFactor: 2 * time.Second,
	}
}

// Backoff returns the wait before retry number attempt (0-based):
// BackoffFactor * 2^attempt, capped at MaxBackoff when set.
func (rc RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	wait := time.Duration(float64(rc.BackoffFactor) * math.Pow(2, float64(attempt)))
	if rc.MaxBackoff > 0 && wait > rc.MaxBackoff {
		return rc.MaxBackoff
	}
	return wait
}

// sleepContext is the default SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// retryWithBackoff runs fn until it succeeds, returns a non-transient error,
// or the retry budget is spent. fn reports the class of its failure; the
// last error is returned together with its class.
func (c *Client) retryWithBackoff(ctx context.Context, fn func() (ErrorClass, error)) (ErrorClass, error) {
	var (
		lastErr   error
		lastClass ErrorClass
	)

	attempts := c.retry.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		class, err := fn()
		if err == nil {
			if attempt > 0 {
				c.logger.Info().
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return "", nil
		}

		lastErr, lastClass = err, class

		if !shouldRetry(class) {
			return class, err
		}

		// No wait after the final attempt
		if attempt == attempts-1 {
			break
		}

		wait := c.retry.Backoff(attempt)
		otxRetriesTotal.WithLabelValues(string(class)).Inc()
		otxRetryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

		event := c.logger.Warn().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt+1).
			Dur("backoff", wait)
		if class == ErrorClassRateLimit {
			event.Msg("Rate limit hit (429), waiting before retry")
		} else {
			event.Msg("Transient fetch error, retrying after backoff")
		}

		if err := c.sleep(ctx, wait); err != nil {
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Msg("Backoff interrupted")
			return lastClass, err
		}
	}

	otxRetryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	return lastClass, fmt.Errorf("retry attempts exhausted after %d attempts: %w", attempts, lastErr)
}

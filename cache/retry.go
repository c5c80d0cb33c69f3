package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/errors"
	"github.com/potshotlabs/potshot-client/metrics"
)

// RetryConfig holds retry configuration for remote reads.
type RetryConfig struct {
	MaxRetries    int           // Total attempts, including the first
	BaseDelay     time.Duration // Delay after the first failed attempt
	BackoffFactor float64       // Exponential backoff factor (e.g., 2.0)
	Retryable     func(error) bool
}

// DefaultRetryConfig returns the default retry configuration:
// 3 attempts, 1s base delay, doubling each attempt. Only errors the
// adapter classified as retryable (rate limit, transient network,
// timeout) are retried; contract reverts fail fast.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:    3,
		BaseDelay:     1 * time.Second,
		BackoffFactor: 2.0,
		Retryable:     errors.IsRetryable,
	}
}

// RetryWithBackoff invokes fn, retrying rate-limited or transient failures
// with exponential backoff. The delay before attempt n is
// BaseDelay * BackoffFactor^(n-2) for n >= 2. Non-retryable errors and
// exhaustion are returned immediately without further backoff.
//
// Only read operations and gas estimation go through this helper.
// Transaction submissions are never retried here; a duplicate submit
// could double-spend.
func RetryWithBackoff(
	ctx context.Context,
	operation string,
	config *RetryConfig,
	logger zerolog.Logger,
	fn func() error,
) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	log := logger.With().Str("component", "retry").Str("operation", operation).Logger()

	var lastErr error
	delay := config.BaseDelay

	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempts", attempt).
					Msg("operation succeeded after retries")
			}
			return nil
		}

		lastErr = err

		if config.Retryable == nil || !config.Retryable(err) {
			return err
		}

		if attempt == config.MaxRetries {
			break
		}

		metrics.RetryAttempts.WithLabelValues(operation).Inc()
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", config.MaxRetries).
			Dur("retry_in", delay).
			Msg("retryable failure, backing off")

		select {
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * config.BackoffFactor)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	log.Error().
		Err(lastErr).
		Int("attempts", config.MaxRetries).
		Msg("operation failed after all retries")

	return fmt.Errorf("operation %s failed after %d attempts: %w",
		operation, config.MaxRetries, lastErr)
}

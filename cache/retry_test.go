package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gameerrors "github.com/potshotlabs/potshot-client/errors"
)

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:    maxRetries,
		BaseDelay:     1 * time.Millisecond,
		BackoffFactor: 2.0,
		Retryable:     gameerrors.IsRetryable,
	}
}

func TestRetryWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), "read_pot", fastRetryConfig(3), testLogger(), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_SucceedsAfterRateLimit(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), "read_pot", fastRetryConfig(3), testLogger(), func() error {
		attempts++
		if attempts < 3 {
			return gameerrors.New(gameerrors.ErrCodeRateLimit, "too many requests", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_ExhaustsOnPersistentRateLimit(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), "read_pot", fastRetryConfig(3), testLogger(), func() error {
		attempts++
		return gameerrors.New(gameerrors.ErrCodeRateLimit, "too many requests", nil)
	})

	require.Error(t, err)
	// Attempts exactly MaxRetries times, no more
	assert.Equal(t, 3, attempts)
	assert.True(t, gameerrors.HasCode(err, gameerrors.ErrCodeRateLimit))
}

func TestRetryWithBackoff_NonRetryableFailsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"contract revert", gameerrors.New(gameerrors.ErrCodeSimulation, "reverted", nil)},
		{"pot too small", gameerrors.New(gameerrors.ErrCodePotTooSmall, "pot too small", nil)},
		{"unclassified", errors.New("plain error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := RetryWithBackoff(context.Background(), "op", fastRetryConfig(3), testLogger(), func() error {
				attempts++
				return tt.err
			})

			require.Error(t, err)
			assert.Equal(t, 1, attempts)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRetryWithBackoff_ExponentialDelays(t *testing.T) {
	config := &RetryConfig{
		MaxRetries:    4,
		BaseDelay:     20 * time.Millisecond,
		BackoffFactor: 2.0,
		Retryable:     gameerrors.IsRetryable,
	}

	var stamps []time.Time
	_ = RetryWithBackoff(context.Background(), "op", config, testLogger(), func() error {
		stamps = append(stamps, time.Now())
		return gameerrors.New(gameerrors.ErrCodeRateLimit, "too many requests", nil)
	})

	require.Len(t, stamps, 4)

	// Delay before attempt n is base * 2^(n-2): 20ms, 40ms, 80ms
	expected := []time.Duration{20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond}
	for i, want := range expected {
		got := stamps[i+1].Sub(stamps[i])
		assert.GreaterOrEqual(t, got, want, "delay before attempt %d", i+2)
		assert.Less(t, got, want+30*time.Millisecond, "delay before attempt %d", i+2)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	config := &RetryConfig{
		MaxRetries:    5,
		BaseDelay:     50 * time.Millisecond,
		BackoffFactor: 2.0,
		Retryable:     gameerrors.IsRetryable,
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := RetryWithBackoff(ctx, "op", config, testLogger(), func() error {
		attempts++
		return gameerrors.New(gameerrors.ErrCodeNetwork, "flaky", nil)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, attempts, 5)
}

func TestRetryWithBackoff_NilConfigUsesDefault(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), "op", nil, testLogger(), func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 1*time.Second, config.BaseDelay)
	assert.Equal(t, 2.0, config.BackoffFactor)
	assert.True(t, config.Retryable(gameerrors.New(gameerrors.ErrCodeRateLimit, "x", nil)))
	assert.False(t, config.Retryable(gameerrors.New(gameerrors.ErrCodeSimulation, "x", nil)))
}

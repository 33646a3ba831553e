package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Retry tuning constants. Remote transcription and generation services rate
// limit aggressively, so the base delay is deliberately long.
const (
	DefaultMaxAttempts  = 3
	DefaultBaseDelay    = 4 * time.Second
	DefaultMaxDelay     = 60 * time.Second
	DefaultJitterFactor = 0.2 // 20% jitter
)

// RetryConfig holds retry settings.
type RetryConfig struct {
	// MaxAttempts is the total number of times the operation runs, including
	// the first try.
	MaxAttempts int

	// BaseDelay is the wait before the first re-attempt; it doubles on each
	// subsequent one.
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// JitterFactor spreads delays to avoid thundering-herd retries.
	JitterFactor float64

	// IsRetryable decides whether an error is worth another attempt.
	// Defaults to retrying everything except context cancellation.
	IsRetryable func(error) bool
}

// DefaultRetryConfig returns the standard settings: 3 attempts, 4s base
// delay, 60s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxAttempts,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsRetryable,
	}
}

// IsRetryable reports whether err is worth retrying. Context cancellation and
// deadline expiry are not: the caller has already given up.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Retry executes fn with exponential backoff. Returns the last error if all
// attempts fail, or ctx.Err() if the context ends while waiting.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if !cfg.IsRetryable(lastErr) || attempt == cfg.MaxAttempts {
			return lastErr
		}

		delay := backoffDelay(cfg, attempt)
		slog.Warn("operation failed, backing off",
			"attempt", attempt, "max_attempts", cfg.MaxAttempts, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// backoffDelay calculates exponential backoff with jitter for the given
// attempt (1-based).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << min(attempt-1, 6) // cap shift to prevent overflow
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	jitter := float64(delay) * cfg.JitterFactor * (rand.Float64() - 0.5)
	return time.Duration(float64(delay) + jitter)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsRetryable
	}
	return c
}

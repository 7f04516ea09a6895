// Package resilience bounds retries around outbound gateway calls.
// Transient failures (rate limits, 5xx, flaky networks) back off
// exponentially with jitter; permanent failures surface immediately so
// callers can degrade per vendor instead of stalling a whole batch.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds the retry loop around one outbound call.
type RetryConfig struct {
	// MaxAttempts is the total number of tries including the first.
	// 1 disables retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the sleep before the first retry. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the sleep between attempts. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier grows the sleep after each failed attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction spreads each sleep by up to this fraction in either
	// direction, so concurrent fallback workers do not retry in lockstep.
	// Default: 0.25.
	JitterFraction float64

	// ShouldRetry decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry runs before each retry sleep with the 1-based attempt
	// number that just failed.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig is the baseline used for API gateway calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	return c
}

// delay computes the sleep after the given 1-based failed attempt.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt-1))
	if ceiling := float64(c.MaxBackoff); d > ceiling {
		d = ceiling
	}
	if c.JitterFraction > 0 {
		d += (rand.Float64()*2 - 1) * d * c.JitterFraction
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// DoVal runs fn until it succeeds, the error is permanent, the attempts
// run out, or ctx ends. On failure the zero value and the last error
// come back; context cancellation is never retried.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == cfg.MaxAttempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// Do is DoVal for calls without a result.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryLogger returns an OnRetry hook that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}

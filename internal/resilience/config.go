package resilience

import "time"

// FromRetryConfig maps the flat config-file retry knobs onto a
// RetryConfig, keeping defaults for anything unset or out of range.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitterFraction float64) RetryConfig {
	cfg := RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Duration(initialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(maxBackoffMs) * time.Millisecond,
		Multiplier:     multiplier,
		JitterFraction: jitterFraction,
	}
	if jitterFraction < 0 {
		cfg.JitterFraction = DefaultRetryConfig().JitterFraction
	}
	return cfg.normalized()
}

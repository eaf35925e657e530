// Package retry runs an operation with exponential backoff.
//
// It is used for connecting to the host agent, where the agent may come up
// after the profiled process does.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config defines the retry behavior.
//
// The zero value is not usable; MaxRetries and InitialBackoff must be set.
type Config struct {
	// MaxRetries is the maximum number of attempts.
	MaxRetries int `yaml:"max_retries"`
	// InitialBackoff is the wait before the second attempt; each later wait
	// doubles it.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// MaxBackoff caps a single wait. Zero means no cap.
	MaxBackoff time.Duration `yaml:"max_backoff"`
	// Jitter adds up to this fraction of the wait, growing with the attempt
	// number (0.0 to 1.0).
	Jitter float64 `yaml:"jitter"`
}

// ShouldRetryFunc reports whether err is worth another attempt.
// A nil ShouldRetryFunc retries every error.
type ShouldRetryFunc func(error) bool

// Do calls fn until it succeeds, shouldRetry rejects its error, the attempts
// run out or ctx is cancelled.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(Backoff(cfg, attempt)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// Backoff returns the wait before the given attempt (1-based among retries).
func Backoff(cfg Config, attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1)) * float64(cfg.InitialBackoff))

	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 && cfg.MaxRetries > 0 {
		backoff += time.Duration(float64(backoff) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries))
	}

	return backoff
}

package llm

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds retry configuration for model requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per request.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry policy used for Gemini calls:
// 3 attempts, starting at one second and doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// do runs fn until it succeeds, returns a non-transient error, or the
// attempts run out. The last error is returned wrapped with the attempt count.
func (rc RetryConfig) do(ctx context.Context, fn func(attempt int) error) error {
	attempts := rc.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := rc.BackoffBase
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * rc.BackoffMultiplier)
			if rc.MaxBackoff > 0 && backoff > rc.MaxBackoff {
				backoff = rc.MaxBackoff
			}
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

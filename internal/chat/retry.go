package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig bounds the completion retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of completion calls for one turn,
	// first try included.
	MaxAttempts int

	// InitialBackoff is the delay after the first failed attempt; it
	// doubles per retry up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// retryable reports whether the completion error is worth another
// attempt. Only rate limiting and timeouts are transient; auth failures
// and outages degrade immediately.
func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// completeWithRetry calls the completion client with a client-side rate
// limit per attempt and exponential backoff between attempts. It stops
// early on non-retryable errors and on context cancellation.
func (c *Coordinator) completeWithRetry(ctx context.Context, promptText string) (string, error) {
	var lastErr error
	delay := c.retry.InitialBackoff
	start := time.Now()

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		text, err := c.completion.Complete(ctx, promptText, c.params)
		if err == nil {
			c.logger.Debug("completion succeeded",
				"attempts", attempt,
				"elapsed", time.Since(start))
			return text, nil
		}
		lastErr = err

		if !retryable(err) {
			return "", err
		}
		if attempt == c.retry.MaxAttempts {
			break
		}

		c.logger.Debug("retrying completion",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxBackoff)
		}
	}

	return "", fmt.Errorf("completion after %d attempts (elapsed %v): %w",
		c.retry.MaxAttempts, time.Since(start), lastErr)
}

// Package retry layers a transient-failure retry policy over a status-check
// capability. The poller itself never retries transport errors; callers that
// want resilience wrap their StatusFunc with this decorator.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	anyworld "github.com/anythingworld/anything-world-go"
)

// NewStatusFunc wraps inner with retry logic using exponential backoff and
// jitter. maxRetries is the number of additional attempts after the first
// failure; baseDelay is the delay before the first retry, doubled on each
// subsequent one.
func NewStatusFunc(inner anyworld.StatusFunc, maxRetries int, baseDelay time.Duration, logger *slog.Logger) anyworld.StatusFunc {
	return func(ctx context.Context, modelID string) (*anyworld.Model, error) {
		model, err := inner(ctx, modelID)
		if err == nil {
			return model, nil
		}
		if !isRetryable(err) {
			return nil, err
		}

		lastErr := err
		for attempt := 1; attempt <= maxRetries; attempt++ {
			delay := backoffDelay(baseDelay, attempt, lastErr)

			logger.Warn("retrying after transient error",
				"model_id", modelID,
				"attempt", attempt,
				"max_retries", maxRetries,
				"delay", delay,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}

			model, err = inner(ctx, modelID)
			if err == nil {
				return model, nil
			}
			if !isRetryable(err) {
				return nil, err
			}
			lastErr = err
		}

		return nil, lastErr
	}
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func backoffDelay(baseDelay time.Duration, attempt int, err error) time.Duration {
	var terr *anyworld.TransportError
	if errors.As(err, &terr) && terr.RetryAfter > 0 {
		return terr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	// Apply ±30% jitter
	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Never retry a cancelled context.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var terr *anyworld.TransportError
	if errors.As(err, &terr) {
		// 429 Too Many Requests is retryable.
		if terr.StatusCode == 429 {
			return true
		}
		// 5xx is retryable.
		if terr.StatusCode >= 500 {
			return true
		}
		// Network-level failure without a status is retryable.
		if terr.StatusCode == 0 {
			return true
		}
		// Other 4xx is not.
		return false
	}

	// Terminal poll outcomes and anything else: not retryable.
	return false
}

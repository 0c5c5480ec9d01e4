// Package errors provides a bounded-backoff retry helper for transient
// errors, used by the process supervisor's liveness verification.
package errors

import (
	"context"
	"time"
)

// BackoffStrategy defines how retry delays are calculated.
type BackoffStrategy int

const (
	LinearBackoff BackoffStrategy = iota
	ExponentialBackoff
	ConstantBackoff
)

// RetryConfig bounds a Retry call's attempt count and delay schedule.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Backoff     BackoffStrategy
}

// DefaultRetryConfig returns sensible defaults for retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Backoff:     ExponentialBackoff,
	}
}

// RetryFunc is a function that can be retried.
type RetryFunc func() error

// Retry calls fn until it succeeds, a non-retryable error is returned, the
// attempt budget is exhausted, or ctx is done, backing off between attempts
// per config.
func Retry(ctx context.Context, config *RetryConfig, fn RetryFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return WithContext(
				Wrap(ctx.Err(), CancelError, "retry cancelled due to context"),
				"attempts", attempt,
			)
		case <-time.After(calculateDelay(config, attempt)):
		}
	}

	return lastErr
}

func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	var delay time.Duration
	switch config.Backoff {
	case LinearBackoff:
		delay = config.BaseDelay * time.Duration(attempt)
	case ExponentialBackoff:
		delay = config.BaseDelay * time.Duration(1<<uint(attempt-1))
	case ConstantBackoff:
		delay = config.BaseDelay
	default:
		delay = config.BaseDelay
	}
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

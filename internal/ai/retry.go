package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// RetryConfig holds retry configuration for oracle API calls
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 30s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
	Timeout           time.Duration // Per-request timeout (default: 60s)

	// MaxConcurrentCalls bounds in-flight oracle calls (default: 3, 0 = unlimited)
	MaxConcurrentCalls int

	// CallsPerSecond throttles the request rate (default: 2, 0 = unlimited)
	CallsPerSecond float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:         3,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         30 * time.Second,
		BackoffMultiplier:  2.0,
		Timeout:            60 * time.Second,
		MaxConcurrentCalls: 3,
		CallsPerSecond:     2,
	}
}

// retryWithBackoff executes an operation with retry and exponential backoff.
// Each attempt runs under its own timeout; context cancellation and
// non-retryable API errors abort immediately.
func (a *Arbiter) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	if a.concurrencySem != nil {
		if err := a.concurrencySem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer a.concurrencySem.Release(1)
	}

	var lastErr error
	backoff := a.retry.InitialBackoff

	for attempt := 0; attempt <= a.retry.MaxRetries; attempt++ {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter aborted %s: %w", operation, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 0 {
				log.Printf("[ORACLE] %s succeeded after %d retries", operation, attempt)
			}
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", operation, ctx.Err())
		}
		if !isRetryable(err) {
			return fmt.Errorf("%s failed: %w", operation, err)
		}
		if attempt < a.retry.MaxRetries {
			log.Printf("[ORACLE] %s attempt %d failed (%v), retrying in %v", operation, attempt+1, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled during backoff: %w", operation, ctx.Err())
			}
			backoff = time.Duration(float64(backoff) * a.retry.BackoffMultiplier)
			if backoff > a.retry.MaxBackoff {
				backoff = a.retry.MaxBackoff
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, a.retry.MaxRetries+1, lastErr)
}

// isRetryable reports whether an API error is worth retrying. Overloads,
// rate limits, timeouts, and transient network failures are; malformed
// requests and auth failures are not.
func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"overloaded", "rate limit", "429", "500", "502", "503", "529",
		"timeout", "deadline exceeded", "connection reset", "connection refused", "eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Package retry runs operations under a bounded retry policy.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how often and how fast an operation is retried.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Multiplier grows the delay after each attempt; values <= 1 keep it fixed.
	Multiplier float64
	MaxDelay   time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
}

// Fixed returns a policy with a constant delay.
func Fixed(attempts int, delay time.Duration, retryable func(error) bool) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay, Retryable: retryable}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs op until it succeeds, fails with a non-retryable error, attempts run out, or ctx ends.
// The attempt number passed to op starts at 1.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

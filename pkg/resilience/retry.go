// SPDX-License-Identifier: Apache-2.0
// Package resilience provides retry with exponential backoff for the
// embedding and storage backends.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jllopis/bestrag/pkg/errors"
)

// RetryConfig is an immutable retry policy. The zero value retries
// nothing useful; start from DefaultRetryConfig and adjust with the
// With* builders.
type RetryConfig struct {
	// MaxAttempts bounds the total number of calls, first try included.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the grown delay.
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts.
	Multiplier float64

	// IsRecoverable decides whether an error is worth another attempt.
	// Nil means the transient-code default.
	IsRecoverable func(error) bool

	// Jitter spreads the delay by up to this fraction in either
	// direction, so concurrent page workers do not hammer a recovering
	// backend in lockstep.
	Jitter float64
}

// DefaultRetryConfig is tuned for the embedder HTTP calls: three
// attempts with a short initial delay covers a model server restart
// without stretching a failing ingest beyond a few seconds per page.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: isRecoverableDefault,
	}
}

// WithMaxAttempts returns a copy with the attempt bound replaced.
func (rc RetryConfig) WithMaxAttempts(max int) RetryConfig {
	rc.MaxAttempts = max
	return rc
}

// WithInitialDelay returns a copy with the initial delay replaced.
func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

// WithMaxDelay returns a copy with the delay cap replaced.
func (rc RetryConfig) WithMaxDelay(d time.Duration) RetryConfig {
	rc.MaxDelay = d
	return rc
}

// WithIsRecoverable returns a copy with the recoverability check replaced.
func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

// Do calls fn until it succeeds, returns a non-recoverable error, or the
// attempt bound is reached. A context canceled while waiting between
// attempts surfaces as a TIMEOUT error carrying the attempt count.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	recoverable := rc.IsRecoverable
	if recoverable == nil {
		recoverable = isRecoverableDefault
	}

	var lastErr error
	for attempt := 0; attempt < rc.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := rc.wait(ctx, attempt); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !recoverable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (rc RetryConfig) wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return errors.New(errors.CodeTimeout, "context canceled during retry", ctx.Err()).
			WithContext("attempt", attempt).
			WithContext("max_attempts", rc.MaxAttempts)
	case <-time.After(calculateBackoff(attempt, rc)):
		return nil
	}
}

func calculateBackoff(attempt int, rc RetryConfig) time.Duration {
	multiplier := rc.Multiplier
	if multiplier == 0 {
		multiplier = 2.0
	}

	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	if rc.Jitter > 0 {
		delay += time.Duration((rand.Float64()*2 - 1) * rc.Jitter * float64(delay))
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

// isRecoverableDefault retries errors whose code marks a transient
// backend condition. Input and schema errors never heal on retry.
func isRecoverableDefault(err error) bool {
	switch errors.CodeOf(err) {
	case errors.CodeConnection, errors.CodeModelUnavailable, errors.CodeTimeout:
		return true
	default:
		return false
	}
}

package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/jllopis/bestrag/pkg/errors"
)

func fastRetry(attempts int) RetryConfig {
	return DefaultRetryConfig().
		WithMaxAttempts(attempts).
		WithInitialDelay(time.Millisecond).
		WithMaxDelay(5 * time.Millisecond)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.CodeConnection, "backend unreachable", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryStopsOnNonRecoverable(t *testing.T) {
	calls := 0
	err := fastRetry(5).Do(context.Background(), func() error {
		calls++
		return errors.New(errors.CodeInvalidInput, "empty text", nil)
	})
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func() error {
		calls++
		return errors.New(errors.CodeModelUnavailable, "model down", nil)
	})
	if !errors.HasCode(err, errors.CodeModelUnavailable) {
		t.Fatalf("expected MODEL_UNAVAILABLE, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := DefaultRetryConfig().
		WithInitialDelay(time.Hour).
		Do(ctx, func() error {
			return errors.New(errors.CodeConnection, "backend unreachable", nil)
		})
	if !errors.HasCode(err, errors.CodeTimeout) {
		t.Fatalf("expected TIMEOUT after cancellation, got %v", err)
	}
}

func TestCalculateBackoffIsCapped(t *testing.T) {
	rc := RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
	for attempt := 1; attempt < 10; attempt++ {
		if d := calculateBackoff(attempt, rc); d > rc.MaxDelay {
			t.Fatalf("attempt %d exceeded cap: %v", attempt, d)
		}
	}
}

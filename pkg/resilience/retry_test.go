package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/platformbuilds/hindsight/pkg/logger"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		Jitter:      0,
	}
}

func TestRetrierSucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetrier(fastRetryConfig(3), logger.Nop())

	calls := 0
	err := r.Do(context.Background(), "flaky-upstream", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	r := NewRetrier(fastRetryConfig(5), logger.Nop())

	calls := 0
	bad := errors.New("401 unauthorized")
	err := r.Do(context.Background(), "auth-call", func(ctx context.Context) error {
		calls++
		return Permanent(bad)
	})

	if calls != 1 {
		t.Errorf("permanent error should stop retries, got %d attempts", calls)
	}
	if !IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if !errors.Is(err, bad) {
		t.Errorf("expected wrapped cause to survive, got %v", err)
	}
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	r := NewRetrier(fastRetryConfig(3), logger.Nop())

	calls := 0
	err := r.Do(context.Background(), "down-upstream", func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	})

	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error should mention attempt count, got %q", err.Error())
	}
}

func TestRetrierHonorsContextCancellation(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxAttempts: 5, BaseBackoff: time.Hour}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "slow-upstream", func(ctx context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected a single attempt before cancellation, got %d", calls)
	}
}

func TestRetrierSingleAttemptNoBackoff(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxAttempts: 1, BaseBackoff: time.Hour}, logger.Nop())

	start := time.Now()
	err := r.Do(context.Background(), "one-shot", func(ctx context.Context) error {
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("single attempt should not sleep, took %v", elapsed)
	}
}

func TestWithJitterStaysWithinBounds(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxAttempts: 3, BaseBackoff: time.Second, Jitter: 0.5}, logger.Nop())

	for i := 0; i < 100; i++ {
		d := r.withJitter(time.Second)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [500ms, 1500ms]", d)
		}
	}
}

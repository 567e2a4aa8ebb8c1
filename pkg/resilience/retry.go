package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/platformbuilds/hindsight/pkg/logger"
)

// RetryConfig controls the retry loop shared by outbound callers.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first
	BaseBackoff time.Duration // delay before attempt 2; doubles every retry
	MaxBackoff  time.Duration // ceiling for the doubled delay (0 = no ceiling)
	Jitter      float64       // fraction of the delay randomized, 0..1
}

// DefaultRetryConfig matches the backoff schedule used for upstream HTTP
// calls: 3 attempts with 1s, 2s pauses, plus/minus 20% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		Jitter:      0.2,
	}
}

// permanentError wraps an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable; the Retrier returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Retrier runs an operation with exponential backoff. Every retry attempt
// is logged so operators can see flapping upstreams in stdout.
type Retrier struct {
	cfg RetryConfig
	log logger.Logger
}

func NewRetrier(cfg RetryConfig, log logger.Logger) *Retrier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Jitter > 1 {
		cfg.Jitter = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Retrier{cfg: cfg, log: log}
}

// Do invokes fn until it succeeds, returns a permanent error, or the
// attempt budget is exhausted. The context is checked between attempts,
// so cancellation interrupts the backoff sleep as well.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := r.cfg.BaseBackoff

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		lastErr = err

		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.withJitter(backoff)
		r.log.Warn("operation failed, retrying",
			"operation", op, "attempt", attempt, "backoff", delay.String(), "error", err)

		select {
		case <-time.After(delay):
			if backoff *= 2; r.cfg.MaxBackoff > 0 && backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.log.Error("operation exhausted retries",
		"operation", op, "attempts", r.cfg.MaxAttempts, "error", lastErr)
	return fmt.Errorf("%s failed after %d attempts: %w", op, r.cfg.MaxAttempts, lastErr)
}

// withJitter spreads the delay by +/- cfg.Jitter so synchronized callers
// do not hammer a recovering upstream in lockstep.
func (r *Retrier) withJitter(d time.Duration) time.Duration {
	if r.cfg.Jitter == 0 || d <= 0 {
		return d
	}
	spread := float64(d) * r.cfg.Jitter
	offset := (rand.Float64()*2 - 1) * spread
	jittered := time.Duration(float64(d) + offset)
	if jittered < 0 {
		return 0
	}
	return jittered
}

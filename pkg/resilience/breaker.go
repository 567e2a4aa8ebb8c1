package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/platformbuilds/hindsight/internal/monitoring"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

// BreakerConfig shapes the circuit breaker guarding a single upstream.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before the breaker opens
	Cooldown         time.Duration // time in open state before probing again
	SuccessThreshold uint32        // consecutive half-open successes before closing
}

// DefaultBreakerConfig trips after 5 consecutive failures and probes again
// after 30 seconds.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		SuccessThreshold: 1,
	}
}

// Breaker wraps sony/gobreaker with state-change logging and the breaker
// state gauge. Callers use IsBreakerOpen to distinguish fast-fail rejections
// from real upstream errors.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewBreaker(cfg BreakerConfig, log logger.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if log == nil {
		log = logger.Nop()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
			monitoring.RecordBreakerState(name, stateGaugeValue(to))
		},
	}

	monitoring.RecordBreakerState(cfg.Name, stateGaugeValue(gobreaker.StateClosed))

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through the breaker. When the breaker is open the call is
// rejected without invoking fn.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// State returns the current breaker state as "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Name returns the breaker name used in logs and metrics.
func (b *Breaker) Name() string {
	return b.cb.Name()
}

// IsBreakerOpen reports whether err is a breaker rejection rather than an
// error returned by the wrapped call.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateGaugeValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

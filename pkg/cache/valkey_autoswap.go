package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

// autoSwapCache wraps a ValkeyCache implementation and can swap from a
// fallback (the in-memory noop) to a real Valkey client once it becomes
// available. It satisfies ValkeyCache by delegating all calls to the
// currently active implementation.
type autoSwapCache struct {
	mu      sync.RWMutex
	current ValkeyCache
	swapped bool
	logger  logger.Logger

	// control for background connector
	stopCh chan struct{}
}

// newAutoSwapCache creates an auto-swapping cache that starts with `fallback`
// and keeps trying `dialReal` until it succeeds, then atomically swaps.
func newAutoSwapCache(
	fallback ValkeyCache,
	logger logger.Logger,
	dialReal func() (ValkeyCache, error),
) *autoSwapCache {
	a := &autoSwapCache{
		current: fallback,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				real, err := dialReal()
				if err != nil {
					a.logger.Warn("Valkey connection attempt failed; will retry", "error", err)
					continue
				}
				a.mu.Lock()
				a.current = real
				a.swapped = true
				a.mu.Unlock()
				a.logger.Info("Valkey connection established; switched from in-memory to real cache")
				return // stop after first successful swap
			}
		}
	}()

	return a
}

// Stop stops the background connector (used if the parent context is cancelled).
func (a *autoSwapCache) Stop() { close(a.stopCh) }

func (a *autoSwapCache) active() ValkeyCache {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

/* --- Delegate methods to active implementation --- */

func (a *autoSwapCache) Get(ctx context.Context, key string) ([]byte, error) {
	return a.active().Get(ctx, key)
}

func (a *autoSwapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.active().Set(ctx, key, value, ttl)
}

func (a *autoSwapCache) Delete(ctx context.Context, key string) error {
	return a.active().Delete(ctx, key)
}

func (a *autoSwapCache) CacheAnalysisResult(ctx context.Context, groupHash string, result *models.AnalysisResult, ttl time.Duration) error {
	return a.active().CacheAnalysisResult(ctx, groupHash, result, ttl)
}

func (a *autoSwapCache) GetCachedAnalysisResult(ctx context.Context, groupHash string) (*models.AnalysisResult, error) {
	return a.active().GetCachedAnalysisResult(ctx, groupHash)
}

func (a *autoSwapCache) AppendAlertHistory(ctx context.Context, summary *models.AlertGroupSummary) error {
	return a.active().AppendAlertHistory(ctx, summary)
}

func (a *autoSwapCache) AlertHistory(ctx context.Context, limit int64) ([]models.AlertGroupSummary, error) {
	return a.active().AlertHistory(ctx, limit)
}

func (a *autoSwapCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return a.active().AcquireLock(ctx, key, ttl)
}

func (a *autoSwapCache) ReleaseLock(ctx context.Context, key string) error {
	return a.active().ReleaseLock(ctx, key)
}

// HealthCheck reports unhealthy until the configured Valkey has been
// reached. Unlike the plain in-memory cache, falling back here means an
// external cache was requested and is still down.
func (a *autoSwapCache) HealthCheck(ctx context.Context) error {
	a.mu.RLock()
	swapped := a.swapped
	a.mu.RUnlock()
	if !swapped {
		return fmt.Errorf("configured Valkey unreachable; serving from in-memory fallback")
	}
	return a.active().HealthCheck(ctx)
}

// NewAutoSwapForSingle creates an auto-swapping cache that upgrades from
// in-memory to a single-node Valkey client when reachable.
func NewAutoSwapForSingle(addr string, db int, username, password string, ttl time.Duration, log logger.Logger, fallback ValkeyCache) ValkeyCache {
	return newAutoSwapCache(fallback, log, func() (ValkeyCache, error) {
		return NewValkeySingle(addr, db, username, password, ttl)
	})
}

// NewAutoSwapForCluster creates an auto-swapping cache that upgrades from
// in-memory to a Valkey cluster client when reachable.
func NewAutoSwapForCluster(nodes []string, username, password string, ttl time.Duration, log logger.Logger, fallback ValkeyCache) ValkeyCache {
	return newAutoSwapCache(fallback, log, func() (ValkeyCache, error) {
		return NewValkeyCluster(nodes, username, password, ttl)
	})
}

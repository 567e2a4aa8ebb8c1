package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

// noopValkeyCache is a process-local fallback that satisfies ValkeyCache
// when no external cache is configured or reachable. Data is not shared
// across replicas and is lost on restart; expiry is enforced lazily on
// read.
type noopValkeyCache struct {
	mu      sync.RWMutex
	m       map[string]noopEntry
	locks   map[string]time.Time
	history [][]byte
	logger  logger.Logger
}

type noopEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (e noopEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func NewNoopValkeyCache(log logger.Logger) ValkeyCache {
	log.Warn("Valkey cache unavailable; using in-memory fallback (noop)")
	return &noopValkeyCache{
		m:      make(map[string]noopEntry),
		locks:  make(map[string]time.Time),
		logger: log,
	}
}

func (n *noopValkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	e, ok := n.m[key]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	if e.expired(time.Now()) {
		n.mu.Lock()
		delete(n.m, key)
		n.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	return e.data, nil
}

func (n *noopValkeyCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	e := noopEntry{data: data}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	n.mu.Lock()
	n.m[key] = e
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) CacheAnalysisResult(ctx context.Context, groupHash string, result *models.AnalysisResult, ttl time.Duration) error {
	return n.Set(ctx, analysisKeyPrefix+groupHash, result, ttl)
}

func (n *noopValkeyCache) GetCachedAnalysisResult(ctx context.Context, groupHash string) (*models.AnalysisResult, error) {
	data, err := n.Get(ctx, analysisKeyPrefix+groupHash)
	if err != nil {
		return nil, err
	}
	return unmarshalAnalysis(data)
}

func (n *noopValkeyCache) AppendAlertHistory(ctx context.Context, summary *models.AlertGroupSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal alert history entry: %w", err)
	}
	n.mu.Lock()
	// Newest first, same ordering as the Valkey LPUSH list.
	n.history = append([][]byte{data}, n.history...)
	if len(n.history) > alertHistoryCap {
		n.history = n.history[:alertHistoryCap]
	}
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) AlertHistory(ctx context.Context, limit int64) ([]models.AlertGroupSummary, error) {
	if limit <= 0 || limit > alertHistoryCap {
		limit = alertHistoryCap
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]models.AlertGroupSummary, 0, limit)
	for _, raw := range n.history {
		if int64(len(out)) >= limit {
			break
		}
		var entry models.AlertGroupSummary
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (n *noopValkeyCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if until, held := n.locks[key]; held && now.Before(until) {
		return false, nil
	}
	n.locks[key] = now.Add(ttl)
	return true, nil
}

func (n *noopValkeyCache) ReleaseLock(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.locks, key)
	n.mu.Unlock()
	return nil
}

// HealthCheck reports healthy: the process-local store is always
// reachable, so an engine running without external Valkey still becomes
// ready.
func (n *noopValkeyCache) HealthCheck(ctx context.Context) error {
	return nil
}

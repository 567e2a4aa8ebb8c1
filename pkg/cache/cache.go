package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

// Key layout shared by every implementation.
const (
	analysisKeyPrefix = "analysis:"
	lockKeyPrefix     = "lock:"
	alertHistoryKey   = "alert_history"

	// Older alert history entries fall off past this many.
	alertHistoryCap = 1000
)

// ErrCacheMiss marks a lookup of a key that is not present. Callers
// distinguish it from transport errors with errors.Is.
var ErrCacheMiss = errors.New("cache: key not found")

// ValkeyCache is the result and history store used across HINDSIGHT.
// Implementations exist for Valkey cluster, single-node, and a
// process-local in-memory fallback.
type ValkeyCache interface {
	// General caching
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Analysis result caching keyed by the stable group hash
	CacheAnalysisResult(ctx context.Context, groupHash string, result *models.AnalysisResult, ttl time.Duration) error
	GetCachedAnalysisResult(ctx context.Context, groupHash string) (*models.AnalysisResult, error)

	// Correlated alert history, newest first
	AppendAlertHistory(ctx context.Context, summary *models.AlertGroupSummary) error
	AlertHistory(ctx context.Context, limit int64) ([]models.AlertGroupSummary, error)

	// Distributed locks
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	HealthCheck(ctx context.Context) error
}

// New selects an implementation from the configured node list: none
// runs in-memory, one dials single-node, more dial cluster. When the
// dial fails at startup the in-memory fallback serves while a
// background connector keeps retrying and swaps the real client in
// once it is reachable.
func New(nodes []string, db int, username, password string, ttl time.Duration, log logger.Logger) ValkeyCache {
	switch len(nodes) {
	case 0:
		return NewNoopValkeyCache(log)
	case 1:
		c, err := NewValkeySingle(nodes[0], db, username, password, ttl)
		if err == nil {
			return c
		}
		log.Warn("Valkey single-node unreachable at startup; using in-memory fallback", "addr", nodes[0], "error", err)
		return NewAutoSwapForSingle(nodes[0], db, username, password, ttl, log, NewNoopValkeyCache(log))
	default:
		c, err := NewValkeyCluster(nodes, username, password, ttl)
		if err == nil {
			return c
		}
		log.Warn("Valkey cluster unreachable at startup; using in-memory fallback", "nodes", nodes, "error", err)
		return NewAutoSwapForCluster(nodes, username, password, ttl, log, NewNoopValkeyCache(log))
	}
}

// encodeValue serializes a Set value: byte slices and strings pass
// through, everything else is JSON.
func encodeValue(key string, value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		return data, nil
	}
}

func unmarshalAnalysis(data []byte) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached analysis: %w", err)
	}
	return &result, nil
}

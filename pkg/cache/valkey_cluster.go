package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/monitoring"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

type valkeyClusterImpl struct {
	client *redis.ClusterClient
	logger logger.Logger
	ttl    time.Duration
}

func NewValkeyCluster(nodes []string, username, password string, defaultTTL time.Duration) (ValkeyCache, error) {
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        nodes,
		Username:     username,
		Password:     password,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection to Valkey cluster
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey cluster: %w", err)
	}

	return &valkeyClusterImpl{
		client: client,
		logger: logger.New("info"),
		ttl:    defaultTTL,
	}, nil
}

func (v *valkeyClusterImpl) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	b, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		monitoring.RecordCacheOperation("get", "miss", time.Since(start))
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}

	if err != nil {
		monitoring.RecordCacheOperation("get", "error", time.Since(start))
		return nil, err
	}

	monitoring.RecordCacheOperation("get", "hit", time.Since(start))
	return b, nil
}

func (v *valkeyClusterImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	data, err := encodeValue(key, value)
	if err != nil {
		monitoring.RecordCacheOperation("set", "error", time.Since(start))
		return err
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error", time.Since(start))
		return err
	}
	monitoring.RecordCacheOperation("set", "success", time.Since(start))
	return nil
}

func (v *valkeyClusterImpl) Delete(ctx context.Context, key string) error {
	start := time.Now()
	if err := v.client.Del(ctx, key).Err(); err != nil {
		monitoring.RecordCacheOperation("delete", "error", time.Since(start))
		return err
	}
	monitoring.RecordCacheOperation("delete", "success", time.Since(start))
	return nil
}

func (v *valkeyClusterImpl) CacheAnalysisResult(ctx context.Context, groupHash string, result *models.AnalysisResult, ttl time.Duration) error {
	return v.Set(ctx, analysisKeyPrefix+groupHash, result, ttl)
}

func (v *valkeyClusterImpl) GetCachedAnalysisResult(ctx context.Context, groupHash string) (*models.AnalysisResult, error) {
	data, err := v.Get(ctx, analysisKeyPrefix+groupHash)
	if err != nil {
		return nil, err
	}
	return unmarshalAnalysis(data)
}

func (v *valkeyClusterImpl) AppendAlertHistory(ctx context.Context, summary *models.AlertGroupSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal alert history entry: %w", err)
	}

	// A list lives on a single slot, so the pipeline holds cluster-wide.
	pipe := v.client.TxPipeline()
	pipe.LPush(ctx, alertHistoryKey, data)
	pipe.LTrim(ctx, alertHistoryKey, 0, alertHistoryCap-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (v *valkeyClusterImpl) AlertHistory(ctx context.Context, limit int64) ([]models.AlertGroupSummary, error) {
	if limit <= 0 || limit > alertHistoryCap {
		limit = alertHistoryCap
	}
	vals, err := v.client.LRange(ctx, alertHistoryKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.AlertGroupSummary, 0, len(vals))
	for _, raw := range vals {
		var entry models.AlertGroupSummary
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			v.logger.Warn("dropping corrupt alert history entry", "error", err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

/* --------------------------- distributed locks --------------------------- */

func (v *valkeyClusterImpl) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := v.client.SetNX(ctx, lockKeyPrefix+key, "locked", ttl).Result()
	if err != nil {
		return false, err
	}
	return set, nil
}

func (v *valkeyClusterImpl) ReleaseLock(ctx context.Context, key string) error {
	return v.client.Del(ctx, lockKeyPrefix+key).Err()
}

// HealthCheck pings the Valkey cluster.
func (v *valkeyClusterImpl) HealthCheck(ctx context.Context) error {
	if ctx == nil {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctx = c
	}
	return v.client.Ping(ctx).Err()
}

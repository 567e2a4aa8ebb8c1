package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

func TestNoopValkey_BasicOps(t *testing.T) {
	cch := NewNoopValkeyCache(logger.New("error"))
	ctx := context.Background()

	if err := cch.Set(ctx, "k1", "v1", time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, err := cch.Get(ctx, "k1")
	if err != nil || string(b) != "v1" {
		t.Fatalf("get: %v %q", err, string(b))
	}
	if err := cch.Delete(ctx, "k1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := cch.Get(ctx, "k1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestNoopValkey_Expiry(t *testing.T) {
	cch := NewNoopValkeyCache(logger.New("error"))
	ctx := context.Background()

	if err := cch.Set(ctx, "ttl", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if _, err := cch.Get(ctx, "ttl"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry miss, got %v", err)
	}
}

func TestNoopValkey_AnalysisResults(t *testing.T) {
	cch := NewNoopValkeyCache(logger.New("error"))
	ctx := context.Background()

	result := &models.AnalysisResult{
		IncidentSummary:  "db connection pool exhausted",
		AffectedServices: []string{"db", "api"},
		EventCount:       7,
	}
	if err := cch.CacheAnalysisResult(ctx, "hash-1", result, time.Minute); err != nil {
		t.Fatalf("cache analysis: %v", err)
	}
	got, err := cch.GetCachedAnalysisResult(ctx, "hash-1")
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.IncidentSummary != result.IncidentSummary || got.EventCount != 7 {
		t.Fatalf("unexpected cached analysis: %+v", got)
	}

	if _, err := cch.GetCachedAnalysisResult(ctx, "hash-2"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss for unknown hash, got %v", err)
	}
}

func TestNoopValkey_AlertHistoryNewestFirst(t *testing.T) {
	cch := NewNoopValkeyCache(logger.New("error"))
	ctx := context.Background()

	for _, id := range []string{"g1", "g2", "g3"} {
		if err := cch.AppendAlertHistory(ctx, &models.AlertGroupSummary{GroupID: id, Count: 2}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	got, err := cch.AlertHistory(ctx, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].GroupID != "g3" || got[1].GroupID != "g2" {
		t.Fatalf("expected newest first, got %s then %s", got[0].GroupID, got[1].GroupID)
	}

	all, err := cch.AlertHistory(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected full history with zero limit, got %d %v", len(all), err)
	}
}

func TestNoopValkey_Locks(t *testing.T) {
	cch := NewNoopValkeyCache(logger.New("error"))
	ctx := context.Background()

	ok, err := cch.AcquireLock(ctx, "analysis:run", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: %v %v", ok, err)
	}
	ok, err = cch.AcquireLock(ctx, "analysis:run", time.Minute)
	if err != nil || ok {
		t.Fatalf("held lock should not re-acquire: %v %v", ok, err)
	}
	if err := cch.ReleaseLock(ctx, "analysis:run"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = cch.AcquireLock(ctx, "analysis:run", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release: %v %v", ok, err)
	}
}

func TestNoopValkey_HealthCheckIsHealthy(t *testing.T) {
	cch := NewNoopValkeyCache(logger.New("error"))
	if err := cch.HealthCheck(context.Background()); err != nil {
		t.Fatalf("in-memory cache should be healthy: %v", err)
	}
}

//go:build db

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
)

// Exercises a live Valkey/Redis single node when VALKEY_ADDR is set.
func TestValkeySingle_DB(t *testing.T) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		t.Skip("VALKEY_ADDR not set; skipping DB test")
	}
	ttl := 2 * time.Second
	cch, err := NewValkeySingle(addr, 0, os.Getenv("VALKEY_USERNAME"), os.Getenv("VALKEY_PASSWORD"), ttl)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx := context.Background()
	if err := cch.HealthCheck(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := cch.Set(ctx, "dbk", "dbv", ttl); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, err := cch.Get(ctx, "dbk")
	if err != nil || string(b) != "dbv" {
		t.Fatalf("get: %v %q", err, string(b))
	}

	if err := cch.AppendAlertHistory(ctx, &models.AlertGroupSummary{GroupID: "db-g1", Count: 2}); err != nil {
		t.Fatalf("append history: %v", err)
	}
	entries, err := cch.AlertHistory(ctx, 5)
	if err != nil || len(entries) == 0 {
		t.Fatalf("history: %v (%d entries)", err, len(entries))
	}

	ok, err := cch.AcquireLock(ctx, "db-lock", ttl)
	if err != nil || !ok {
		t.Fatalf("acquire: %v %v", ok, err)
	}
	if err := cch.ReleaseLock(ctx, "db-lock"); err != nil {
		t.Fatalf("release: %v", err)
	}
}

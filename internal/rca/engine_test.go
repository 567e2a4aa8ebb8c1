package rca

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
)

// TestEngineAnalyzeEvents_TimeGrouping runs the full pipeline over two
// bursts separated by a long gap.
func TestEngineAnalyzeEvents_TimeGrouping(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []*models.Event{
		eventAt(base, "api", "ERROR", "api failed"),
		eventAt(base.Add(30*time.Second), "db", "ERROR", "db failed"),
		eventAt(base.Add(2*time.Hour), "cache", "ERROR", "cache failed"),
	}

	engine := NewEngine(nil)
	results, err := engine.AnalyzeEvents(context.Background(), events, DefaultOptions())
	if err != nil {
		t.Fatalf("AnalyzeEvents failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.EventCount != 2 {
		t.Errorf("Expected 2 events in first incident, got %d", first.EventCount)
	}
	if first.CausalGraph == nil || len(first.CausalGraph.RootCauses) != 1 || first.CausalGraph.RootCauses[0] != "api" {
		t.Errorf("Expected root cause api in first incident, got %+v", first.CausalGraph)
	}
	if results[1].EventCount != 1 {
		t.Errorf("Expected 1 event in second incident, got %d", results[1].EventCount)
	}
}

// TestEngineAnalyzeEvents_ServiceTimeGrouping verifies per-service
// partitioning.
func TestEngineAnalyzeEvents_ServiceTimeGrouping(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []*models.Event{
		eventAt(base, "api", "ERROR", "api failed"),
		eventAt(base.Add(time.Second), "db", "ERROR", "db failed"),
	}

	opts := DefaultOptions()
	opts.GroupBy = GroupByServiceTime

	results, err := NewEngine(nil).AnalyzeEvents(context.Background(), events, opts)
	if err != nil {
		t.Fatalf("AnalyzeEvents failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected one result per service, got %d", len(results))
	}
	for _, r := range results {
		if r.EventCount != 1 {
			t.Errorf("Expected single-event incidents, got %d", r.EventCount)
		}
	}
}

// TestEngineAnalyzeEvents_UnknownStrategy rejects unrecognized
// grouping names.
func TestEngineAnalyzeEvents_UnknownStrategy(t *testing.T) {
	opts := DefaultOptions()
	opts.GroupBy = "fancy"

	_, err := NewEngine(nil).AnalyzeEvents(context.Background(), []*models.Event{
		untimedEvent("api", "ERROR", "boom"),
	}, opts)
	if err == nil {
		t.Fatal("Expected error for unknown grouping strategy")
	}
	if !strings.Contains(err.Error(), "fancy") {
		t.Errorf("Expected the strategy name in the error, got %v", err)
	}
}

// TestEngineAnalyzeEvents_ContextCancelled stops between groups.
func TestEngineAnalyzeEvents_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	_, err := NewEngine(nil).AnalyzeEvents(ctx, []*models.Event{
		eventAt(base, "api", "ERROR", "boom"),
	}, DefaultOptions())
	if err == nil {
		t.Fatal("Expected context cancellation error")
	}
}

// TestEngineAnalyzeEvents_NoEvents yields no results, not an error.
func TestEngineAnalyzeEvents_NoEvents(t *testing.T) {
	results, err := NewEngine(nil).AnalyzeEvents(context.Background(), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("AnalyzeEvents failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

// TestEngineAnalyzeGroup_Empty returns the empty-analysis sentinel.
func TestEngineAnalyzeGroup_Empty(t *testing.T) {
	result, err := NewEngine(nil).AnalyzeGroup(context.Background(), NewIncidentGroup(nil), DefaultOptions())
	if err != nil {
		t.Fatalf("AnalyzeGroup failed: %v", err)
	}
	if result.IncidentSummary != "No events to analyze" {
		t.Errorf("Expected empty sentinel summary, got %q", result.IncidentSummary)
	}
}

// TestEngineAnalyzeGroup_CustomWindow verifies the causal window
// option reaches graph construction.
func TestEngineAnalyzeGroup_CustomWindow(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	group := NewIncidentGroup([]*models.Event{
		eventAt(base, "api", "ERROR", "api failed"),
		eventAt(base.Add(2*time.Minute), "db", "ERROR", "db failed"),
	})

	opts := DefaultOptions()
	opts.CausalWindow = time.Minute

	result, err := NewEngine(nil).AnalyzeGroup(context.Background(), group, opts)
	if err != nil {
		t.Fatalf("AnalyzeGroup failed: %v", err)
	}
	if len(result.CausalGraph.Edges) != 0 {
		t.Errorf("Expected no edges with a 1m window, got %+v", result.CausalGraph.Edges)
	}
}

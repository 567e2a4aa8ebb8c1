package rca

import (
	"testing"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
)

func span(traceID, spanID, parentID, service, op string, start time.Time, dur time.Duration, status models.SpanStatus) *models.Span {
	return &models.Span{
		TraceID:       traceID,
		SpanID:        spanID,
		ParentSpanID:  parentID,
		ServiceName:   service,
		OperationName: op,
		StartTime:     start,
		EndTime:       start.Add(dur),
		Status:        status,
	}
}

// TestAnalyzeTrace_ErrorPropagation covers two error spans in
// different services failing back to back.
func TestAnalyzeTrace_ErrorPropagation(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	trace := &models.Trace{
		TraceID: "t1",
		Spans: []*models.Span{
			span("t1", "a", "", "gateway", "GET /checkout", base, 400*time.Millisecond, models.SpanStatusOK),
			span("t1", "b", "a", "checkout", "charge", base.Add(10*time.Millisecond), 90*time.Millisecond, models.SpanStatusError),
			span("t1", "c", "a", "payments", "capture", base.Add(150*time.Millisecond), 50*time.Millisecond, models.SpanStatusError),
		},
	}

	analyzer := NewTraceAnalyzer(DefaultTraceAnalyzerConfig(), nil)
	issues, err := analyzer.AnalyzeTrace(trace)
	if err != nil {
		t.Fatalf("AnalyzeTrace failed: %v", err)
	}

	if len(issues) == 0 || issues[0].Type != models.TraceIssueError {
		t.Fatalf("Expected trace_error first, got %+v", issues)
	}
	wantServices := []string{"checkout", "payments"}
	for i, svc := range wantServices {
		if issues[0].Services[i] != svc {
			t.Errorf("Expected trace_error services %v, got %v", wantServices, issues[0].Services)
			break
		}
	}

	var prop *models.TraceIssue
	for i := range issues {
		if issues[i].Type == models.TraceIssueErrorPropagation {
			prop = &issues[i]
		}
	}
	if prop == nil {
		t.Fatalf("Expected an error_propagation issue, got %+v", issues)
	}
	hops, ok := prop.Details["hops"].([]models.PropagationHop)
	if !ok || len(hops) != 1 {
		t.Fatalf("Expected 1 propagation hop, got %v", prop.Details["hops"])
	}
	if hops[0].FromService != "checkout" || hops[0].ToService != "payments" {
		t.Errorf("Expected hop checkout->payments, got %+v", hops[0])
	}
	if hops[0].TimeDiffMs != 50 {
		t.Errorf("Expected hop time_diff_ms 50, got %.1f", hops[0].TimeDiffMs)
	}
}

// TestAnalyzeTrace_PropagationGapTooLarge verifies that spans farther
// apart than the window never chain.
func TestAnalyzeTrace_PropagationGapTooLarge(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	trace := &models.Trace{
		TraceID: "t2",
		Spans: []*models.Span{
			span("t2", "a", "", "gateway", "GET /", base, time.Second, models.SpanStatusOK),
			span("t2", "b", "a", "checkout", "charge", base.Add(10*time.Millisecond), 90*time.Millisecond, models.SpanStatusError),
			span("t2", "c", "a", "payments", "capture", base.Add(500*time.Millisecond), 50*time.Millisecond, models.SpanStatusError),
		},
	}

	issues, err := NewTraceAnalyzer(DefaultTraceAnalyzerConfig(), nil).AnalyzeTrace(trace)
	if err != nil {
		t.Fatalf("AnalyzeTrace failed: %v", err)
	}
	for _, issue := range issues {
		if issue.Type == models.TraceIssueErrorPropagation {
			t.Errorf("Expected no error_propagation for a 400ms gap, got %+v", issue)
		}
	}
}

// TestAnalyzeTrace_SlowSpans verifies the slow span cap and descending
// duration order.
func TestAnalyzeTrace_SlowSpans(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	trace := &models.Trace{
		TraceID: "t3",
		Spans: []*models.Span{
			span("t3", "root", "", "api", "GET /report", base, 12*time.Second, models.SpanStatusOK),
		},
	}
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		dur := time.Duration(1100+100*i) * time.Millisecond
		trace.Spans = append(trace.Spans,
			span("t3", id, "root", "db", "query", base.Add(time.Duration(i)*time.Second), dur, models.SpanStatusOK))
	}

	issues, err := NewTraceAnalyzer(DefaultTraceAnalyzerConfig(), nil).AnalyzeTrace(trace)
	if err != nil {
		t.Fatalf("AnalyzeTrace failed: %v", err)
	}

	var slow *models.TraceIssue
	for i := range issues {
		if issues[i].Type == models.TraceIssueSlowSpans {
			slow = &issues[i]
		}
	}
	if slow == nil {
		t.Fatalf("Expected a slow_spans issue")
	}
	if len(slow.SpanIDs) != maxSlowSpans {
		t.Errorf("Expected %d slow spans reported, got %d", maxSlowSpans, len(slow.SpanIDs))
	}
	// The 12s root is the slowest and must lead.
	if slow.SpanIDs[0] != "root" {
		t.Errorf("Expected slowest span first, got %v", slow.SpanIDs)
	}
}

// TestCriticalPath_FollowsHeaviestSubtree verifies subtree selection
// and the direct-duration tie-break.
func TestCriticalPath_FollowsHeaviestSubtree(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	trace := &models.Trace{
		TraceID: "t4",
		Spans: []*models.Span{
			span("t4", "root", "", "api", "handle", base, 2*time.Second, models.SpanStatusOK),
			// Left child: 300ms with a 500ms descendant, subtree 800ms.
			span("t4", "left", "root", "svc-a", "step", base, 300*time.Millisecond, models.SpanStatusOK),
			span("t4", "leaf", "left", "svc-a", "deep", base.Add(50*time.Millisecond), 500*time.Millisecond, models.SpanStatusOK),
			// Right child: flat 600ms, subtree 600ms.
			span("t4", "right", "root", "svc-b", "step", base.Add(time.Second), 600*time.Millisecond, models.SpanStatusOK),
		},
	}

	analyzer := NewTraceAnalyzer(DefaultTraceAnalyzerConfig(), nil)
	root, err := trace.Root()
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	path := analyzer.CriticalPath(trace, root)

	want := []string{"root", "left", "leaf"}
	if len(path) != len(want) {
		t.Fatalf("Expected path %v, got %d spans", want, len(path))
	}
	for i, id := range want {
		if path[i].SpanID != id {
			t.Errorf("Expected path %v, got span %s at %d", want, path[i].SpanID, i)
		}
	}
}

// TestAnalyzeTrace_SlowCriticalPath verifies the issue fires when the
// path total crosses the threshold.
func TestAnalyzeTrace_SlowCriticalPath(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	trace := &models.Trace{
		TraceID: "t5",
		Spans: []*models.Span{
			span("t5", "root", "", "api", "handle", base, 900*time.Millisecond, models.SpanStatusOK),
			span("t5", "child", "root", "db", "query", base.Add(100*time.Millisecond), 700*time.Millisecond, models.SpanStatusOK),
		},
	}

	issues, err := NewTraceAnalyzer(DefaultTraceAnalyzerConfig(), nil).AnalyzeTrace(trace)
	if err != nil {
		t.Fatalf("AnalyzeTrace failed: %v", err)
	}

	var cp *models.TraceIssue
	for i := range issues {
		if issues[i].Type == models.TraceIssueSlowCriticalPath {
			cp = &issues[i]
		}
	}
	if cp == nil {
		t.Fatalf("Expected a slow_critical_path issue, got %+v", issues)
	}
	total, ok := cp.Details["total_duration_ms"].(float64)
	if !ok || total != 1600 {
		t.Errorf("Expected total_duration_ms 1600, got %v", cp.Details["total_duration_ms"])
	}
}

// TestAnalyzeTrace_ServiceDependencies verifies cross-service pairs
// and that single-service traces stay silent.
func TestAnalyzeTrace_ServiceDependencies(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	trace := &models.Trace{
		TraceID: "t6",
		Spans: []*models.Span{
			span("t6", "a", "", "gateway", "GET /", base, 300*time.Millisecond, models.SpanStatusOK),
			span("t6", "b", "a", "checkout", "charge", base.Add(10*time.Millisecond), 100*time.Millisecond, models.SpanStatusOK),
			span("t6", "c", "b", "checkout", "retry", base.Add(120*time.Millisecond), 50*time.Millisecond, models.SpanStatusOK),
			span("t6", "d", "b", "payments", "capture", base.Add(180*time.Millisecond), 60*time.Millisecond, models.SpanStatusOK),
		},
	}

	issues, err := NewTraceAnalyzer(DefaultTraceAnalyzerConfig(), nil).AnalyzeTrace(trace)
	if err != nil {
		t.Fatalf("AnalyzeTrace failed: %v", err)
	}

	var deps *models.TraceIssue
	for i := range issues {
		if issues[i].Type == models.TraceIssueServiceDeps {
			deps = &issues[i]
		}
	}
	if deps == nil {
		t.Fatalf("Expected a service_dependencies issue")
	}
	pairs, ok := deps.Details["dependencies"].([]models.ServiceDependency)
	if !ok || len(pairs) != 2 {
		t.Fatalf("Expected 2 dependencies, got %v", deps.Details["dependencies"])
	}
	if pairs[0].Caller != "checkout" || pairs[0].Callee != "payments" {
		t.Errorf("Expected checkout->payments first, got %+v", pairs[0])
	}
	if pairs[1].Caller != "gateway" || pairs[1].Callee != "checkout" {
		t.Errorf("Expected gateway->checkout second, got %+v", pairs[1])
	}

	single := &models.Trace{
		TraceID: "t7",
		Spans: []*models.Span{
			span("t7", "a", "", "api", "GET /", base, 100*time.Millisecond, models.SpanStatusOK),
			span("t7", "b", "a", "api", "step", base.Add(time.Millisecond), 50*time.Millisecond, models.SpanStatusOK),
		},
	}
	issues, err = NewTraceAnalyzer(DefaultTraceAnalyzerConfig(), nil).AnalyzeTrace(single)
	if err != nil {
		t.Fatalf("AnalyzeTrace failed: %v", err)
	}
	for _, issue := range issues {
		if issue.Type == models.TraceIssueServiceDeps {
			t.Errorf("Expected no dependency issue for a single-service trace")
		}
	}
}

// TestAnalyzeTrace_Malformed rejects multiple roots and inverted span
// times.
func TestAnalyzeTrace_Malformed(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	analyzer := NewTraceAnalyzer(DefaultTraceAnalyzerConfig(), nil)

	twoRoots := &models.Trace{
		TraceID: "bad1",
		Spans: []*models.Span{
			span("bad1", "a", "", "api", "one", base, time.Millisecond, models.SpanStatusOK),
			span("bad1", "b", "", "api", "two", base, time.Millisecond, models.SpanStatusOK),
		},
	}
	if _, err := analyzer.AnalyzeTrace(twoRoots); err == nil {
		t.Errorf("Expected error for multiple roots")
	}

	inverted := &models.Trace{
		TraceID: "bad2",
		Spans: []*models.Span{
			{TraceID: "bad2", SpanID: "a", ServiceName: "api", StartTime: base, EndTime: base.Add(-time.Second)},
		},
	}
	if _, err := analyzer.AnalyzeTrace(inverted); err == nil {
		t.Errorf("Expected error for end before start")
	}

	if _, err := analyzer.AnalyzeTrace(&models.Trace{TraceID: "empty"}); err == nil {
		t.Errorf("Expected error for empty trace")
	}
}

// TestServiceStats_AggregatesAcrossTraces verifies the running
// per-service numbers.
func TestServiceStats_AggregatesAcrossTraces(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	analyzer := NewTraceAnalyzer(DefaultTraceAnalyzerConfig(), nil)

	first := &models.Trace{
		TraceID: "agg1",
		Spans: []*models.Span{
			span("agg1", "a", "", "api", "GET /", base, 100*time.Millisecond, models.SpanStatusOK),
			span("agg1", "b", "a", "db", "query", base.Add(time.Millisecond), 200*time.Millisecond, models.SpanStatusError),
		},
	}
	second := &models.Trace{
		TraceID: "agg2",
		Spans: []*models.Span{
			span("agg2", "a", "", "db", "query", base.Add(time.Minute), 400*time.Millisecond, models.SpanStatusOK),
		},
	}
	if _, err := analyzer.AnalyzeTrace(first); err != nil {
		t.Fatalf("AnalyzeTrace failed: %v", err)
	}
	if _, err := analyzer.AnalyzeTrace(second); err != nil {
		t.Fatalf("AnalyzeTrace failed: %v", err)
	}

	stats := analyzer.ServiceStats()
	if len(stats) != 2 {
		t.Fatalf("Expected stats for 2 services, got %d", len(stats))
	}
	// Sorted by service: api before db.
	if stats[0].Service != "api" || stats[0].SpanCount != 1 || stats[0].ErrorCount != 0 {
		t.Errorf("Unexpected api stats: %+v", stats[0])
	}
	db := stats[1]
	if db.Service != "db" || db.SpanCount != 2 || db.ErrorCount != 1 {
		t.Errorf("Unexpected db stats: %+v", db)
	}
	if db.MinMs != 200 || db.MaxMs != 400 || db.TotalMs != 600 || db.AvgMs != 300 {
		t.Errorf("Unexpected db durations: %+v", db)
	}
}

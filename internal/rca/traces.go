package rca

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
)

// Trace analysis defaults.
const (
	// SlowSpanThreshold marks spans (and critical paths) as slow.
	SlowSpanThreshold = 1000 * time.Millisecond

	// ErrorPropagationWindow is the maximum gap between one error span
	// ending and the next starting for them to form a chain.
	ErrorPropagationWindow = 100 * time.Millisecond

	// maxSlowSpans bounds how many slow spans one issue reports.
	maxSlowSpans = 5
)

// TraceAnalyzerConfig tunes the trace analyzer.
type TraceAnalyzerConfig struct {
	SlowSpanThreshold time.Duration
	ErrorWindow       time.Duration
}

// DefaultTraceAnalyzerConfig returns the trace analysis defaults.
func DefaultTraceAnalyzerConfig() TraceAnalyzerConfig {
	return TraceAnalyzerConfig{
		SlowSpanThreshold: SlowSpanThreshold,
		ErrorWindow:       ErrorPropagationWindow,
	}
}

func (c TraceAnalyzerConfig) withDefaults() TraceAnalyzerConfig {
	if c.SlowSpanThreshold <= 0 {
		c.SlowSpanThreshold = SlowSpanThreshold
	}
	if c.ErrorWindow <= 0 {
		c.ErrorWindow = ErrorPropagationWindow
	}
	return c
}

// serviceAgg accumulates per-service span statistics across traces.
type serviceAgg struct {
	spanCount  int
	errorCount int
	total      time.Duration
	min        time.Duration
	max        time.Duration
}

// TraceAnalyzer detects issues in span trees and aggregates
// per-service statistics across every trace it has analyzed. The
// aggregate state is guarded; analysis itself is pure per trace.
type TraceAnalyzer struct {
	cfg TraceAnalyzerConfig
	log logging.Logger

	mu       sync.RWMutex
	services map[string]*serviceAgg
}

// NewTraceAnalyzer builds a trace analyzer.
func NewTraceAnalyzer(cfg TraceAnalyzerConfig, log logging.Logger) *TraceAnalyzer {
	if log == nil {
		log = logging.NewNop()
	}
	return &TraceAnalyzer{
		cfg:      cfg.withDefaults(),
		log:      log,
		services: make(map[string]*serviceAgg),
	}
}

// AnalyzeTrace validates the trace, detects issues in the order
// trace_error, error_propagation, slow_spans, slow_critical_path,
// service_dependencies, and records the trace into the per-service
// aggregates.
func (t *TraceAnalyzer) AnalyzeTrace(trace *models.Trace) ([]models.TraceIssue, error) {
	if trace == nil || len(trace.Spans) == 0 {
		return nil, fmt.Errorf("trace has no spans")
	}
	for _, s := range trace.Spans {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("malformed trace %s: %w", trace.TraceID, err)
		}
	}
	root, err := trace.Root()
	if err != nil {
		return nil, err
	}

	var issues []models.TraceIssue

	errorSpans := collectErrorSpans(trace)
	if len(errorSpans) > 0 {
		issues = append(issues, traceErrorIssue(errorSpans))
	}
	issues = append(issues, t.propagationIssues(errorSpans)...)
	if slow := t.slowSpansIssue(trace); slow != nil {
		issues = append(issues, *slow)
	}
	if cp := t.criticalPathIssue(trace, root); cp != nil {
		issues = append(issues, *cp)
	}
	if deps := dependencyIssue(trace); deps != nil {
		issues = append(issues, *deps)
	}

	t.record(trace)

	t.log.Debug("trace analyzed", "trace_id", trace.TraceID, "spans", len(trace.Spans), "issues", len(issues))
	return issues, nil
}

// collectErrorSpans returns error spans ordered by start time, span id
// as tie-break.
func collectErrorSpans(trace *models.Trace) []*models.Span {
	var errs []*models.Span
	for _, s := range trace.Spans {
		if s.IsError() {
			errs = append(errs, s)
		}
	}
	sort.Slice(errs, func(i, j int) bool {
		if !errs[i].StartTime.Equal(errs[j].StartTime) {
			return errs[i].StartTime.Before(errs[j].StartTime)
		}
		return errs[i].SpanID < errs[j].SpanID
	})
	return errs
}

func traceErrorIssue(errorSpans []*models.Span) models.TraceIssue {
	seen := make(map[string]struct{})
	var spanIDs []string
	for _, s := range errorSpans {
		if s.ServiceName != "" {
			seen[s.ServiceName] = struct{}{}
		}
		spanIDs = append(spanIDs, s.SpanID)
	}
	services := make([]string, 0, len(seen))
	for svc := range seen {
		services = append(services, svc)
	}
	sort.Strings(services)

	noun := "spans"
	if len(errorSpans) == 1 {
		noun = "span"
	}
	return models.TraceIssue{
		Type: models.TraceIssueError,
		Description: fmt.Sprintf("%d %s failed in services: %s",
			len(errorSpans), noun, strings.Join(services, ", ")),
		Services: services,
		SpanIDs:  spanIDs,
	}
}

// propagationIssues walks error spans in start order and emits one
// issue per chain where each consecutive gap (next.start - prev.end)
// lies within [0, ErrorWindow].
func (t *TraceAnalyzer) propagationIssues(errorSpans []*models.Span) []models.TraceIssue {
	var issues []models.TraceIssue
	if len(errorSpans) < 2 {
		return issues
	}

	var chain []*models.Span
	flush := func() {
		if len(chain) >= 2 {
			issues = append(issues, propagationIssue(chain, t.cfg.ErrorWindow))
		}
		chain = nil
	}

	for _, s := range errorSpans {
		if len(chain) == 0 {
			chain = append(chain, s)
			continue
		}
		prev := chain[len(chain)-1]
		gap := s.StartTime.Sub(prev.EndTime)
		if gap >= 0 && gap <= t.cfg.ErrorWindow {
			chain = append(chain, s)
		} else {
			flush()
			chain = append(chain, s)
		}
	}
	flush()

	return issues
}

func propagationIssue(chain []*models.Span, window time.Duration) models.TraceIssue {
	hops := make([]models.PropagationHop, 0, len(chain)-1)
	seen := make(map[string]struct{})
	var spanIDs []string
	for i, s := range chain {
		spanIDs = append(spanIDs, s.SpanID)
		if s.ServiceName != "" {
			seen[s.ServiceName] = struct{}{}
		}
		if i == 0 {
			continue
		}
		prev := chain[i-1]
		hops = append(hops, models.PropagationHop{
			FromService: prev.ServiceName,
			ToService:   s.ServiceName,
			TimeDiffMs:  float64(s.StartTime.Sub(prev.EndTime)) / float64(time.Millisecond),
		})
	}
	services := make([]string, 0, len(seen))
	for svc := range seen {
		services = append(services, svc)
	}
	sort.Strings(services)

	return models.TraceIssue{
		Type: models.TraceIssueErrorPropagation,
		Description: fmt.Sprintf("error propagated across %d spans within %s windows",
			len(chain), window),
		Services: services,
		SpanIDs:  spanIDs,
		Details:  map[string]interface{}{"hops": hops},
	}
}

func (t *TraceAnalyzer) slowSpansIssue(trace *models.Trace) *models.TraceIssue {
	var slow []*models.Span
	for _, s := range trace.Spans {
		if s.Duration() > t.cfg.SlowSpanThreshold {
			slow = append(slow, s)
		}
	}
	if len(slow) == 0 {
		return nil
	}
	sort.Slice(slow, func(i, j int) bool {
		di, dj := slow[i].Duration(), slow[j].Duration()
		if di != dj {
			return di > dj
		}
		return slow[i].SpanID < slow[j].SpanID
	})
	if len(slow) > maxSlowSpans {
		slow = slow[:maxSlowSpans]
	}

	details := make([]map[string]interface{}, 0, len(slow))
	seen := make(map[string]struct{})
	var spanIDs []string
	for _, s := range slow {
		spanIDs = append(spanIDs, s.SpanID)
		if s.ServiceName != "" {
			seen[s.ServiceName] = struct{}{}
		}
		details = append(details, map[string]interface{}{
			"span_id":     s.SpanID,
			"service":     s.ServiceName,
			"operation":   s.OperationName,
			"duration_ms": float64(s.Duration()) / float64(time.Millisecond),
		})
	}
	services := make([]string, 0, len(seen))
	for svc := range seen {
		services = append(services, svc)
	}
	sort.Strings(services)

	return &models.TraceIssue{
		Type: models.TraceIssueSlowSpans,
		Description: fmt.Sprintf("%d spans exceeded %s", len(slow),
			t.cfg.SlowSpanThreshold),
		Services: services,
		SpanIDs:  spanIDs,
		Details:  map[string]interface{}{"spans": details},
	}
}

// subtreeDuration sums the durations of a span and all descendants.
func subtreeDuration(trace *models.Trace, span *models.Span, memo map[string]time.Duration) time.Duration {
	if d, ok := memo[span.SpanID]; ok {
		return d
	}
	total := span.Duration()
	for _, child := range trace.Children(span.SpanID) {
		total += subtreeDuration(trace, child, memo)
	}
	memo[span.SpanID] = total
	return total
}

// CriticalPath returns the chain from the root that maximizes summed
// subtree duration; ties break on highest direct duration, then span
// id order.
func (t *TraceAnalyzer) CriticalPath(trace *models.Trace, root *models.Span) []*models.Span {
	memo := make(map[string]time.Duration)
	path := []*models.Span{root}
	current := root
	for {
		kids := trace.Children(current.SpanID)
		if len(kids) == 0 {
			return path
		}
		best := kids[0]
		bestSubtree := subtreeDuration(trace, best, memo)
		for _, k := range kids[1:] {
			d := subtreeDuration(trace, k, memo)
			switch {
			case d > bestSubtree:
				best, bestSubtree = k, d
			case d == bestSubtree && k.Duration() > best.Duration():
				best = k
			case d == bestSubtree && k.Duration() == best.Duration() && k.SpanID < best.SpanID:
				best = k
			}
		}
		path = append(path, best)
		current = best
	}
}

func (t *TraceAnalyzer) criticalPathIssue(trace *models.Trace, root *models.Span) *models.TraceIssue {
	path := t.CriticalPath(trace, root)

	var total time.Duration
	for _, s := range path {
		total += s.Duration()
	}
	if total <= t.cfg.SlowSpanThreshold {
		return nil
	}

	steps := make([]map[string]interface{}, 0, len(path))
	seen := make(map[string]struct{})
	var spanIDs []string
	for _, s := range path {
		spanIDs = append(spanIDs, s.SpanID)
		if s.ServiceName != "" {
			seen[s.ServiceName] = struct{}{}
		}
		steps = append(steps, map[string]interface{}{
			"span_id":     s.SpanID,
			"service":     s.ServiceName,
			"operation":   s.OperationName,
			"duration_ms": float64(s.Duration()) / float64(time.Millisecond),
		})
	}
	services := make([]string, 0, len(seen))
	for svc := range seen {
		services = append(services, svc)
	}
	sort.Strings(services)

	return &models.TraceIssue{
		Type: models.TraceIssueSlowCriticalPath,
		Description: fmt.Sprintf("critical path of %d spans took %s, above the %s threshold",
			len(path), total, t.cfg.SlowSpanThreshold),
		Services: services,
		SpanIDs:  spanIDs,
		Details: map[string]interface{}{
			"path":              steps,
			"total_duration_ms": float64(total) / float64(time.Millisecond),
		},
	}
}

// dependencyIssue reports distinct caller → callee service pairs from
// parent-child span relationships, only when the trace crosses
// services.
func dependencyIssue(trace *models.Trace) *models.TraceIssue {
	if len(trace.Services()) < 2 {
		return nil
	}

	byID := make(map[string]*models.Span, len(trace.Spans))
	for _, s := range trace.Spans {
		byID[s.SpanID] = s
	}

	seen := make(map[models.ServiceDependency]struct{})
	for _, s := range trace.Spans {
		if s.ParentSpanID == "" {
			continue
		}
		parent, ok := byID[s.ParentSpanID]
		if !ok || parent.ServiceName == "" || s.ServiceName == "" {
			continue
		}
		if parent.ServiceName == s.ServiceName {
			continue
		}
		seen[models.ServiceDependency{Caller: parent.ServiceName, Callee: s.ServiceName}] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}

	deps := make([]models.ServiceDependency, 0, len(seen))
	svcSet := make(map[string]struct{})
	for d := range seen {
		deps = append(deps, d)
		svcSet[d.Caller] = struct{}{}
		svcSet[d.Callee] = struct{}{}
	}
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Caller != deps[j].Caller {
			return deps[i].Caller < deps[j].Caller
		}
		return deps[i].Callee < deps[j].Callee
	})
	services := make([]string, 0, len(svcSet))
	for svc := range svcSet {
		services = append(services, svc)
	}
	sort.Strings(services)

	return &models.TraceIssue{
		Type:        models.TraceIssueServiceDeps,
		Description: fmt.Sprintf("trace crosses %d services with %d dependencies", len(services), len(deps)),
		Services:    services,
		Details:     map[string]interface{}{"dependencies": deps},
	}
}

// record folds one trace into the per-service aggregates.
func (t *TraceAnalyzer) record(trace *models.Trace) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range trace.Spans {
		if s.ServiceName == "" {
			continue
		}
		agg, ok := t.services[s.ServiceName]
		if !ok {
			agg = &serviceAgg{min: s.Duration(), max: s.Duration()}
			t.services[s.ServiceName] = agg
		}
		d := s.Duration()
		agg.spanCount++
		agg.total += d
		if s.IsError() {
			agg.errorCount++
		}
		if d < agg.min {
			agg.min = d
		}
		if d > agg.max {
			agg.max = d
		}
	}
}

// ServiceStats returns the per-service aggregates across every trace
// analyzed so far, sorted by service name.
func (t *TraceAnalyzer) ServiceStats() []models.ServiceStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.ServiceStats, 0, len(t.services))
	for svc, agg := range t.services {
		stats := models.ServiceStats{
			Service:    svc,
			SpanCount:  agg.spanCount,
			ErrorCount: agg.errorCount,
			TotalMs:    float64(agg.total) / float64(time.Millisecond),
			MinMs:      float64(agg.min) / float64(time.Millisecond),
			MaxMs:      float64(agg.max) / float64(time.Millisecond),
		}
		if agg.spanCount > 0 {
			stats.AvgMs = stats.TotalMs / float64(agg.spanCount)
		}
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

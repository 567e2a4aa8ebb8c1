package models

import (
	"fmt"
	"sort"
	"time"
)

// SpanStatus mirrors the OTLP status code of a span.
type SpanStatus string

const (
	SpanStatusUnset SpanStatus = "UNSET"
	SpanStatusOK    SpanStatus = "OK"
	SpanStatusError SpanStatus = "ERROR"
)

// SpanEvent is a timestamped annotation attached to a span.
type SpanEvent struct {
	Name       string                 `json:"name"`
	Timestamp  time.Time              `json:"timestamp"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Span is one timed operation inside a trace.
type Span struct {
	TraceID       string                 `json:"traceId"`
	SpanID        string                 `json:"spanId"`
	ParentSpanID  string                 `json:"parentSpanId,omitempty"`
	ServiceName   string                 `json:"serviceName"`
	OperationName string                 `json:"operationName"`
	StartTime     time.Time              `json:"startTime"`
	EndTime       time.Time              `json:"endTime"`
	Status        SpanStatus             `json:"status"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
	Events        []SpanEvent            `json:"events,omitempty"`
}

// Duration is end minus start. Callers must have validated
// EndTime >= StartTime on construction.
func (s *Span) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// IsError reports whether the span completed in ERROR status.
func (s *Span) IsError() bool {
	return s.Status == SpanStatusError
}

// Validate checks the per-span invariants.
func (s *Span) Validate() error {
	if s.TraceID == "" || s.SpanID == "" {
		return fmt.Errorf("span missing trace or span id")
	}
	if s.EndTime.Before(s.StartTime) {
		return fmt.Errorf("span %s ends before it starts", s.SpanID)
	}
	return nil
}

// Trace is a collection of spans sharing a trace id, rooted at the
// unique span without a parent reference.
type Trace struct {
	TraceID string  `json:"traceId"`
	Spans   []*Span `json:"spans"`
}

// Root returns the unique root span. The trace is malformed when zero
// or more than one span lacks a parent reference, or when a parent
// reference does not resolve within the trace.
func (t *Trace) Root() (*Span, error) {
	byID := make(map[string]*Span, len(t.Spans))
	for _, s := range t.Spans {
		byID[s.SpanID] = s
	}

	var root *Span
	for _, s := range t.Spans {
		if s.ParentSpanID == "" {
			if root != nil {
				return nil, fmt.Errorf("trace %s has multiple root spans", t.TraceID)
			}
			root = s
			continue
		}
		if _, ok := byID[s.ParentSpanID]; !ok {
			return nil, fmt.Errorf("trace %s: span %s references missing parent %s",
				t.TraceID, s.SpanID, s.ParentSpanID)
		}
	}
	if root == nil {
		return nil, fmt.Errorf("trace %s has no root span", t.TraceID)
	}
	return root, nil
}

// Services returns the sorted set of distinct service names in the trace.
func (t *Trace) Services() []string {
	seen := make(map[string]struct{})
	for _, s := range t.Spans {
		if s.ServiceName != "" {
			seen[s.ServiceName] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for svc := range seen {
		out = append(out, svc)
	}
	sort.Strings(out)
	return out
}

// Children returns the direct children of the given span, ordered by
// start time with span id as tie-break.
func (t *Trace) Children(spanID string) []*Span {
	var kids []*Span
	for _, s := range t.Spans {
		if s.ParentSpanID == spanID {
			kids = append(kids, s)
		}
	}
	sort.Slice(kids, func(i, j int) bool {
		if !kids[i].StartTime.Equal(kids[j].StartTime) {
			return kids[i].StartTime.Before(kids[j].StartTime)
		}
		return kids[i].SpanID < kids[j].SpanID
	})
	return kids
}

// Trace issue type tags emitted by the trace analyzer.
const (
	TraceIssueError            = "trace_error"
	TraceIssueErrorPropagation = "error_propagation"
	TraceIssueSlowSpans        = "slow_spans"
	TraceIssueSlowCriticalPath = "slow_critical_path"
	TraceIssueServiceDeps      = "service_dependencies"
)

// PropagationHop is one edge of an error-propagation chain.
type PropagationHop struct {
	FromService string  `json:"from_service"`
	ToService   string  `json:"to_service"`
	TimeDiffMs  float64 `json:"time_diff_ms"`
}

// ServiceDependency is a caller → callee pair observed in a trace.
type ServiceDependency struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

// TraceIssue is one finding from the trace analyzer.
type TraceIssue struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Services    []string               `json:"services,omitempty"`
	SpanIDs     []string               `json:"span_ids,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// ServiceStats aggregates span observations for one service across
// many traces. Durations are reported in milliseconds.
type ServiceStats struct {
	Service    string  `json:"service"`
	SpanCount  int     `json:"span_count"`
	ErrorCount int     `json:"error_count"`
	TotalMs    float64 `json:"total_duration_ms"`
	MinMs      float64 `json:"min_duration_ms"`
	MaxMs      float64 `json:"max_duration_ms"`
	AvgMs      float64 `json:"avg_duration_ms"`
}

package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
)

// A collector-style export groups by trace id, maps nanosecond
// timestamps to instants and carries the resource service name onto
// every span.
func TestParseOTLP_Export(t *testing.T) {
	payload := `{
	  "resourceSpans": [
	    {
	      "resource": {"attributes": [{"key": "service.name", "value": {"stringValue": "checkout"}}]},
	      "scopeSpans": [{"spans": [
	        {"traceId": "t1", "spanId": "a", "name": "handle-order",
	         "startTimeUnixNano": "1735725600000000000",
	         "endTimeUnixNano": "1735725600250000000",
	         "status": {"code": "STATUS_CODE_ERROR"},
	         "attributes": [{"key": "retries", "value": {"intValue": "2"}}]},
	        {"traceId": "t2", "spanId": "x", "name": "health",
	         "startTimeUnixNano": 1735725601000000000,
	         "endTimeUnixNano": 1735725601001000000,
	         "status": {"code": 1}}
	      ]}]
	    },
	    {
	      "resource": {"attributes": [{"key": "service.name", "value": {"stringValue": "payments"}}]},
	      "scopeSpans": [{"spans": [
	        {"traceId": "t1", "spanId": "b", "parentSpanId": "a", "name": "charge",
	         "startTimeUnixNano": "1735725600050000000",
	         "endTimeUnixNano": "1735725600200000000",
	         "status": {"code": 2}}
	      ]}]
	    }
	  ]
	}`

	traces, err := ParseOTLPBytes([]byte(payload))
	if err != nil {
		t.Fatalf("ParseOTLP failed: %v", err)
	}
	if len(traces) != 2 {
		t.Fatalf("Expected 2 traces, got %d", len(traces))
	}
	if traces[0].TraceID != "t1" || traces[1].TraceID != "t2" {
		t.Fatalf("Expected traces sorted by id, got %s then %s", traces[0].TraceID, traces[1].TraceID)
	}

	t1 := traces[0]
	if len(t1.Spans) != 2 {
		t.Fatalf("Expected 2 spans in t1, got %d", len(t1.Spans))
	}
	root := t1.Spans[0]
	if root.SpanID != "a" {
		t.Fatalf("Expected spans ordered by start time, got %s first", root.SpanID)
	}
	if root.ServiceName != "checkout" {
		t.Errorf("Expected resource service checkout, got %q", root.ServiceName)
	}
	wantStart := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	if !root.StartTime.Equal(wantStart) {
		t.Errorf("Expected start %v, got %v", wantStart, root.StartTime)
	}
	if root.Duration() != 250*time.Millisecond {
		t.Errorf("Expected 250ms duration, got %v", root.Duration())
	}
	if root.Status != models.SpanStatusError {
		t.Errorf("Expected ERROR status from enum name, got %s", root.Status)
	}
	if root.Attributes["retries"] != int64(2) {
		t.Errorf("Expected intValue flattened to int64, got %#v", root.Attributes["retries"])
	}

	child := t1.Spans[1]
	if child.ParentSpanID != "a" || child.ServiceName != "payments" {
		t.Errorf("Expected child of a in payments, got parent %q service %q", child.ParentSpanID, child.ServiceName)
	}
	if child.Status != models.SpanStatusError {
		t.Errorf("Expected ERROR status from numeric code, got %s", child.Status)
	}
	if traces[1].Spans[0].Status != models.SpanStatusOK {
		t.Errorf("Expected OK status, got %s", traces[1].Spans[0].Status)
	}
}

// Resources without service.name fall back to the SDK convention.
func TestParseOTLP_MissingServiceName(t *testing.T) {
	payload := `{"resourceSpans": [{"scopeSpans": [{"spans": [
	  {"traceId": "t1", "spanId": "a", "name": "op",
	   "startTimeUnixNano": "1735725600000000000",
	   "endTimeUnixNano": "1735725600000000001"}
	]}]}]}`
	traces, err := ParseOTLPBytes([]byte(payload))
	if err != nil {
		t.Fatalf("ParseOTLP failed: %v", err)
	}
	if len(traces) != 1 || traces[0].Spans[0].ServiceName != "unknown_service" {
		t.Fatalf("Expected unknown_service fallback, got %+v", traces)
	}
}

// Spans without ids or timestamps are dropped, not fatal.
func TestParseOTLP_DropsUnusableSpans(t *testing.T) {
	payload := `{"resourceSpans": [{"scopeSpans": [{"spans": [
	  {"traceId": "t1", "spanId": "", "name": "no-id",
	   "startTimeUnixNano": "1", "endTimeUnixNano": "2"},
	  {"traceId": "t1", "spanId": "b", "name": "no-times"},
	  {"traceId": "t1", "spanId": "c", "name": "kept",
	   "startTimeUnixNano": "1735725600000000000",
	   "endTimeUnixNano": "1735725600000000001"}
	]}]}]}`
	traces, err := ParseOTLPBytes([]byte(payload))
	if err != nil {
		t.Fatalf("ParseOTLP failed: %v", err)
	}
	if len(traces) != 1 || len(traces[0].Spans) != 1 || traces[0].Spans[0].SpanID != "c" {
		t.Fatalf("Expected only span c to survive, got %+v", traces)
	}
}

func TestParseOTLP_BadJSON(t *testing.T) {
	_, err := ParseOTLPBytes([]byte("{not json"))
	var ferr *InvalidFormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("Expected InvalidFormatError, got %v", err)
	}
}

func TestParseOTLP_EmptyPayload(t *testing.T) {
	traces, err := ParseOTLPBytes([]byte(`{"resourceSpans": []}`))
	if err != nil {
		t.Fatalf("ParseOTLP failed: %v", err)
	}
	if len(traces) != 0 {
		t.Errorf("Expected no traces, got %d", len(traces))
	}
}

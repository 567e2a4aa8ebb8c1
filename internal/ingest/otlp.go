package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
)

// unknownServiceName stands in when a resource carries no
// service.name attribute, matching the OTel SDK convention.
const unknownServiceName = "unknown_service"

// OTLP trace JSON as produced by collectors and SDK exporters.
// Timestamps arrive as strings (protojson encodes uint64 that way) or
// as bare numbers; status codes as enum numbers or names.
type otlpPayload struct {
	ResourceSpans []otlpResourceSpans `json:"resourceSpans"`
}

type otlpResourceSpans struct {
	Resource   otlpResource     `json:"resource"`
	ScopeSpans []otlpScopeSpans `json:"scopeSpans"`
}

type otlpResource struct {
	Attributes []otlpKeyValue `json:"attributes"`
}

type otlpScopeSpans struct {
	Spans []otlpSpan `json:"spans"`
}

type otlpSpan struct {
	TraceID           string         `json:"traceId"`
	SpanID            string         `json:"spanId"`
	ParentSpanID      string         `json:"parentSpanId"`
	Name              string         `json:"name"`
	StartTimeUnixNano interface{}    `json:"startTimeUnixNano"`
	EndTimeUnixNano   interface{}    `json:"endTimeUnixNano"`
	Status            otlpStatus     `json:"status"`
	Attributes        []otlpKeyValue `json:"attributes"`
}

type otlpStatus struct {
	Code interface{} `json:"code"`
}

type otlpKeyValue struct {
	Key   string                 `json:"key"`
	Value map[string]interface{} `json:"value"`
}

// ParseOTLP decodes an OTLP/JSON trace export into traces grouped by
// trace id. Spans without ids are dropped; structural validation of
// each trace is the analyzer's job.
func ParseOTLP(r io.Reader) ([]*models.Trace, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var payload otlpPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, &InvalidFormatError{Format: "otlp", Reason: err.Error()}
	}

	byTrace := make(map[string]*models.Trace)
	for _, rs := range payload.ResourceSpans {
		service := resourceServiceName(rs.Resource)
		for _, ss := range rs.ScopeSpans {
			for _, raw := range ss.Spans {
				span, err := convertOTLPSpan(raw, service)
				if err != nil {
					continue
				}
				trace, ok := byTrace[span.TraceID]
				if !ok {
					trace = &models.Trace{TraceID: span.TraceID}
					byTrace[span.TraceID] = trace
				}
				trace.Spans = append(trace.Spans, span)
			}
		}
	}

	traces := make([]*models.Trace, 0, len(byTrace))
	for _, trace := range byTrace {
		sort.Slice(trace.Spans, func(i, j int) bool {
			a, b := trace.Spans[i], trace.Spans[j]
			if !a.StartTime.Equal(b.StartTime) {
				return a.StartTime.Before(b.StartTime)
			}
			return a.SpanID < b.SpanID
		})
		traces = append(traces, trace)
	}
	sort.Slice(traces, func(i, j int) bool { return traces[i].TraceID < traces[j].TraceID })
	return traces, nil
}

// ParseOTLPBytes is ParseOTLP over an in-memory payload.
func ParseOTLPBytes(data []byte) ([]*models.Trace, error) {
	return ParseOTLP(bytes.NewReader(data))
}

func convertOTLPSpan(raw otlpSpan, service string) (*models.Span, error) {
	if raw.TraceID == "" || raw.SpanID == "" {
		return nil, fmt.Errorf("span missing trace or span id")
	}
	start, err := unixNanoTime(raw.StartTimeUnixNano)
	if err != nil {
		return nil, fmt.Errorf("span %s start time: %w", raw.SpanID, err)
	}
	end, err := unixNanoTime(raw.EndTimeUnixNano)
	if err != nil {
		return nil, fmt.Errorf("span %s end time: %w", raw.SpanID, err)
	}
	return &models.Span{
		TraceID:       raw.TraceID,
		SpanID:        raw.SpanID,
		ParentSpanID:  raw.ParentSpanID,
		ServiceName:   service,
		OperationName: raw.Name,
		StartTime:     start,
		EndTime:       end,
		Status:        otlpStatusCode(raw.Status.Code),
		Attributes:    flattenOTLPAttributes(raw.Attributes),
	}, nil
}

func resourceServiceName(res otlpResource) string {
	for _, kv := range res.Attributes {
		if kv.Key == "service.name" {
			if s, ok := anyValue(kv.Value).(string); ok && s != "" {
				return s
			}
		}
	}
	return unknownServiceName
}

func unixNanoTime(v interface{}) (time.Time, error) {
	var nanos int64
	switch n := v.(type) {
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad unix nano %q", n)
		}
		nanos = parsed
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("bad unix nano %q", n.String())
		}
		nanos = parsed
	case float64:
		nanos = int64(n)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
	return time.Unix(0, nanos).UTC(), nil
}

func otlpStatusCode(code interface{}) models.SpanStatus {
	switch c := code.(type) {
	case string:
		switch c {
		case "STATUS_CODE_ERROR":
			return models.SpanStatusError
		case "STATUS_CODE_OK":
			return models.SpanStatusOK
		}
	case json.Number:
		if n, err := c.Int64(); err == nil {
			return statusFromEnum(n)
		}
	case float64:
		return statusFromEnum(int64(c))
	}
	return models.SpanStatusUnset
}

func statusFromEnum(n int64) models.SpanStatus {
	switch n {
	case 1:
		return models.SpanStatusOK
	case 2:
		return models.SpanStatusError
	}
	return models.SpanStatusUnset
}

// flattenOTLPAttributes collapses the OTLP AnyValue wrapper into plain
// scalars where possible.
func flattenOTLPAttributes(kvs []otlpKeyValue) map[string]interface{} {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(kvs))
	for _, kv := range kvs {
		if kv.Key == "" {
			continue
		}
		out[kv.Key] = anyValue(kv.Value)
	}
	return out
}

func anyValue(value map[string]interface{}) interface{} {
	if v, ok := value["stringValue"]; ok {
		return v
	}
	if v, ok := value["boolValue"]; ok {
		return v
	}
	if v, ok := value["intValue"]; ok {
		switch n := v.(type) {
		case string:
			if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
				return parsed
			}
		case json.Number:
			if parsed, err := n.Int64(); err == nil {
				return parsed
			}
		}
		return v
	}
	if v, ok := value["doubleValue"]; ok {
		if n, isNum := v.(json.Number); isNum {
			if parsed, err := n.Float64(); err == nil {
				return parsed
			}
		}
		return v
	}
	return value
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/models"
)

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope
}

// dataField re-decodes the envelope's data into out.
func dataField(t *testing.T, envelope models.APIResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestServerE2E_AnalyzeFlow(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	records := []map[string]interface{}{
		{"timestamp": "2024-03-01T10:00:00Z", "service": "db", "level": "error", "message": "connection pool exhausted"},
		{"timestamp": "2024-03-01T10:00:05Z", "service": "api", "level": "error", "message": "query timeout"},
		{"timestamp": "2024-03-01T10:00:10Z", "service": "web", "level": "error", "message": "502 from upstream"},
	}

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]interface{}{"records": records})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze status: %s", resp.Status)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Status != "success" {
		t.Fatalf("unexpected envelope status %q (error: %s)", envelope.Status, envelope.Error)
	}

	var data struct {
		Results []*models.AnalysisResult `json:"results"`
		Count   int                      `json:"count"`
	}
	dataField(t, envelope, &data)
	if data.Count != 1 || len(data.Results) != 1 {
		t.Fatalf("expected one incident group, got %d", data.Count)
	}
	result := data.Results[0]
	if result.EventCount != 3 {
		t.Fatalf("expected 3 events in the group, got %d", result.EventCount)
	}
	if len(result.ProbableRootCauses) == 0 {
		t.Fatalf("expected at least one probable root cause")
	}
	if result.ProbableRootCauses[0].Service != "db" {
		t.Fatalf("earliest failing service should lead, got %q", result.ProbableRootCauses[0].Service)
	}
}

func TestServerE2E_AnalyzeRejectsBadRequests(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	// Missing records entirely
	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]interface{}{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing records, got %s", resp.Status)
	}

	// Unknown grouping strategy
	resp = postJSON(t, ts.URL+"/api/v1/analyze", map[string]interface{}{
		"records": []map[string]interface{}{
			{"timestamp": "2024-03-01T10:00:00Z", "service": "db", "level": "error", "message": "boom"},
		},
		"group_by": "sorcery",
	})
	envelope := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown grouping, got %s", resp.Status)
	}
	if !strings.Contains(envelope.Error, "unknown grouping strategy") {
		t.Fatalf("unexpected error message: %s", envelope.Error)
	}
}

func TestServerE2E_IngestThenSearch(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	lines := strings.Join([]string{
		`{"timestamp":"2024-03-01T10:00:00Z","service":"checkout","level":"error","message":"payment gateway timeout"}`,
		`{"timestamp":"2024-03-01T10:00:01Z","service":"checkout","level":"info","message":"retrying payment"}`,
		`not json at all`,
	}, "\n")

	resp, err := http.Post(ts.URL+"/api/v1/ingest/jsonl", "application/x-ndjson", strings.NewReader(lines))
	if err != nil {
		t.Fatalf("POST ingest failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status: %s", resp.Status)
	}
	envelope := decodeEnvelope(t, resp)

	var ingest models.IngestResponse
	dataField(t, envelope, &ingest)
	if ingest.Total != 3 || ingest.Skipped != 1 || len(ingest.Events) != 2 {
		t.Fatalf("unexpected ingest counts: total=%d skipped=%d events=%d",
			ingest.Total, ingest.Skipped, len(ingest.Events))
	}

	// The accepted events are now searchable
	resp = postJSON(t, ts.URL+"/api/v1/events/search", models.EventSearchRequest{Query: "timeout"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status: %s", resp.Status)
	}
	envelope = decodeEnvelope(t, resp)

	var search models.EventSearchResponse
	dataField(t, envelope, &search)
	if search.Total == 0 || len(search.Hits) == 0 {
		t.Fatalf("expected the ingested timeout event to be indexed")
	}
	if search.Hits[0].Event.Service != "checkout" {
		t.Fatalf("unexpected hit service %q", search.Hits[0].Event.Service)
	}
}

func TestServerE2E_IngestFormats(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/ingest/formats")
	if err != nil {
		t.Fatalf("GET formats failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("formats status: %s", resp.Status)
	}
	envelope := decodeEnvelope(t, resp)

	var data struct {
		Formats []string `json:"formats"`
	}
	dataField(t, envelope, &data)
	want := map[string]bool{"jsonl": false, "csv": false, "text": false}
	for _, f := range data.Formats {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Fatalf("format %q missing from %v", f, data.Formats)
		}
	}

	// Unknown format is a client error
	resp, err = http.Post(ts.URL+"/api/v1/ingest/parquet", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST unknown format failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %s", resp.Status)
	}
}

func TestServerE2E_WebhookFlow(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Webhooks.Secrets = map[string]string{"pagerduty": "pd-secret"}
	})
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	// A source without a secret is accepted unverified
	resp := postJSON(t, ts.URL+"/api/v1/webhooks/grafana", map[string]interface{}{
		"service": "checkout",
		"level":   "error",
		"message": "alert fired: high latency",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("webhook status: %s", resp.Status)
	}
	envelope := decodeEnvelope(t, resp)

	var event models.WebhookEvent
	dataField(t, envelope, &event)
	if event.Source != "grafana" || event.Verified {
		t.Fatalf("unexpected webhook event: source=%q verified=%v", event.Source, event.Verified)
	}

	// A source with a secret rejects unsigned payloads
	resp = postJSON(t, ts.URL+"/api/v1/webhooks/pagerduty", map[string]interface{}{"message": "incident"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned payload, got %s", resp.Status)
	}

	// History returns the accepted event, newest first
	resp, err := http.Get(ts.URL + "/api/v1/webhooks/grafana/events")
	if err != nil {
		t.Fatalf("GET history failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status: %s", resp.Status)
	}
	envelope = decodeEnvelope(t, resp)

	var history struct {
		Source string                 `json:"source"`
		Events []*models.WebhookEvent `json:"events"`
		Count  int                    `json:"count"`
	}
	dataField(t, envelope, &history)
	if history.Count != 1 || len(history.Events) != 1 {
		t.Fatalf("expected one grafana event in history, got %d", history.Count)
	}
	if history.Events[0].ID != event.ID {
		t.Fatalf("history returned a different event")
	}
}

func TestServerE2E_AlertCorrelationAndHistory(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	alerts := []*models.Alert{
		{ID: "a1", Source: "prometheus", Severity: "critical", Message: "CPU saturated", CreatedAt: base},
		{ID: "a2", Source: "prometheus", Severity: "critical", Message: "high load", CreatedAt: base.Add(20 * time.Second)},
		{ID: "a3", Source: "grafana", Severity: "info", Message: "disk filling", CreatedAt: base.Add(2 * time.Hour)},
	}

	resp := postJSON(t, ts.URL+"/api/v1/alerts/correlate", models.AlertCorrelateRequest{Alerts: alerts})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("correlate status: %s", resp.Status)
	}
	envelope := decodeEnvelope(t, resp)

	var correlate models.AlertCorrelateResponse
	dataField(t, envelope, &correlate)
	if len(correlate.Groups) == 0 {
		t.Fatalf("expected at least one correlated group")
	}
	var burst *models.AlertGroup
	for _, g := range correlate.Groups {
		if len(g.Alerts) == 2 {
			burst = g
		}
	}
	if burst == nil {
		t.Fatalf("the two prometheus alerts should share a group")
	}
	// keep_first defaults to true: the older alert survives
	for _, id := range correlate.SuppressIDs {
		if id == "a1" {
			t.Fatalf("the first alert of a group must not be suppressed")
		}
	}

	// Correlation summaries are kept for later inspection
	resp, err := http.Get(ts.URL + "/api/v1/alerts/history?limit=10")
	if err != nil {
		t.Fatalf("GET alert history failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("alert history status: %s", resp.Status)
	}
	envelope = decodeEnvelope(t, resp)

	var history struct {
		Summaries []*models.AlertGroupSummary `json:"summaries"`
		Count     int                         `json:"count"`
	}
	dataField(t, envelope, &history)
	if history.Count == 0 {
		t.Fatalf("expected correlation summaries in history")
	}
}

func TestServerE2E_AlertCorrelateRejectsBadRule(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/alerts/correlate", map[string]interface{}{
		"alerts": []map[string]interface{}{
			{"id": "a1", "source": "prometheus", "severity": "critical", "created_at": "2024-03-01T10:00:00Z"},
		},
		"rules": []map[string]interface{}{
			{"name": "broken", "time_window": "0s"},
		},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid rule, got %s", resp.Status)
	}
}

func TestServerE2E_TracesAndAnomaly(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	startNano := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).UnixNano()
	otlp := map[string]interface{}{
		"resourceSpans": []map[string]interface{}{
			{
				"resource": map[string]interface{}{
					"attributes": []map[string]interface{}{
						{"key": "service.name", "value": map[string]interface{}{"stringValue": "checkout"}},
					},
				},
				"scopeSpans": []map[string]interface{}{
					{
						"spans": []map[string]interface{}{
							{
								"traceId":           "t1",
								"spanId":            "s1",
								"name":              "HTTP POST /pay",
								"startTimeUnixNano": fmt.Sprintf("%d", startNano),
								"endTimeUnixNano":   fmt.Sprintf("%d", startNano+int64(2*time.Second)),
								"status":            map[string]interface{}{"code": 2},
							},
						},
					},
				},
			},
		},
	}

	resp := postJSON(t, ts.URL+"/api/v1/traces/analyze", otlp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("traces status: %s", resp.Status)
	}
	envelope := decodeEnvelope(t, resp)

	var traces struct {
		Traces []struct {
			TraceID string              `json:"trace_id"`
			Spans   int                 `json:"spans"`
			Issues  []models.TraceIssue `json:"issues"`
		} `json:"traces"`
		Count int `json:"count"`
	}
	dataField(t, envelope, &traces)
	if traces.Count != 1 || len(traces.Traces) != 1 {
		t.Fatalf("expected one analyzed trace, got %d", traces.Count)
	}
	if traces.Traces[0].Spans != 1 {
		t.Fatalf("expected one span, got %d", traces.Traces[0].Spans)
	}
	if len(traces.Traces[0].Issues) == 0 {
		t.Fatalf("error span should yield at least one issue")
	}

	// Per-service stats accumulate across analyzed traces
	resp, err := http.Get(ts.URL + "/api/v1/traces/services")
	if err != nil {
		t.Fatalf("GET trace services failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trace services status: %s", resp.Status)
	}
	resp.Body.Close()

	// Anomaly check over a flat history with an outlier
	history := make([]float64, 20)
	for i := range history {
		history[i] = 10
	}
	resp = postJSON(t, ts.URL+"/api/v1/anomaly/check", models.AnomalyCheckRequest{
		Value:   400,
		History: history,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("anomaly status: %s", resp.Status)
	}
	envelope = decodeEnvelope(t, resp)

	var verdict models.AnomalyResult
	dataField(t, envelope, &verdict)
	if !verdict.IsAnomaly {
		t.Fatalf("expected an anomaly verdict, got %+v", verdict)
	}
}

func TestServerE2E_SearchDisabledReturns503(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Search.Enabled = false
	})
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/events/search", models.EventSearchRequest{Query: "anything"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with search disabled, got %s", resp.Status)
	}
}

func TestServerE2E_EventsTail(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.WebSocket.Enabled = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(s.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events/tail?service=checkout&min_level=error"
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial tail: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected upgrade, got %s", resp.Status)
	}

	// Wait until the hub has registered the subscriber
	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Hub().ClientCount() == 0 {
		t.Fatalf("tail client never registered")
	}

	// INFO from another service is filtered out, checkout error gets through
	lines := strings.Join([]string{
		`{"timestamp":"2024-03-01T10:00:00Z","service":"billing","level":"info","message":"routine"}`,
		`{"timestamp":"2024-03-01T10:00:01Z","service":"checkout","level":"error","message":"payment declined"}`,
	}, "\n")
	ingestResp, err := http.Post(ts.URL+"/api/v1/ingest/jsonl", "application/x-ndjson", strings.NewReader(lines))
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	ingestResp.Body.Close()
	if ingestResp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status: %s", ingestResp.Status)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read tail frame: %v", err)
	}

	var msg struct {
		Type string        `json:"type"`
		Data *models.Event `json:"data"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if msg.Type != "event" {
		t.Fatalf("unexpected frame type %q", msg.Type)
	}
	if msg.Data == nil || msg.Data.Service != "checkout" {
		t.Fatalf("expected the checkout error, got %+v", msg.Data)
	}
}

func TestServerE2E_TailRejectsPlainHTTP(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.WebSocket.Enabled = true
	})
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/events/tail")
	if err != nil {
		t.Fatalf("GET tail failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426 for plain HTTP, got %s", resp.Status)
	}
}

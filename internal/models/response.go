package models

import "time"

// APIResponse is the envelope returned by every HTTP endpoint.
type APIResponse struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SuccessResponse wraps data in a success envelope.
func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{Status: "success", Data: data, Timestamp: time.Now().UTC()}
}

// ErrorResponse wraps a sanitized message in an error envelope.
func ErrorResponse(msg string) APIResponse {
	return APIResponse{Status: "error", Error: msg, Timestamp: time.Now().UTC()}
}

// AnalyzeRequest submits raw records (or pre-normalized events) for a
// full pipeline run.
type AnalyzeRequest struct {
	Records       []map[string]interface{} `json:"records" binding:"required"`
	GroupBy       string                   `json:"group_by,omitempty"`
	WindowSeconds int                      `json:"window_seconds,omitempty"`
	MinEvents     int                      `json:"min_events,omitempty"`
	UseLLM        bool                     `json:"use_llm,omitempty"`
}

// IngestResponse reports the outcome of ingesting a payload through an
// adapter in lenient or strict mode.
type IngestResponse struct {
	Events  []*Event       `json:"events"`
	Total   int            `json:"total"`
	Skipped int            `json:"skipped"`
	Reasons map[string]int `json:"skip_reasons,omitempty"`
}

// AlertCorrelateRequest submits alerts for correlation. When no rules
// are given the configured defaults apply.
type AlertCorrelateRequest struct {
	Alerts    []*Alert          `json:"alerts" binding:"required"`
	Rules     []CorrelationRule `json:"rules,omitempty"`
	KeepFirst *bool             `json:"keep_first,omitempty"`
}

// AlertCorrelateResponse carries groups, summaries and the IDs the
// caller should suppress.
type AlertCorrelateResponse struct {
	Groups      []*AlertGroup        `json:"groups"`
	Summaries   []*AlertGroupSummary `json:"summaries"`
	SuppressIDs []string             `json:"suppress_ids"`
}

// EventSearchRequest queries the in-memory event index. An empty query
// with no filters matches everything, bounded by Limit.
type EventSearchRequest struct {
	Query   string `json:"query"`
	Service string `json:"service,omitempty"`
	Level   string `json:"level,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// EventSearchHit is one search result with its relevance score.
type EventSearchHit struct {
	Event *Event  `json:"event"`
	Score float64 `json:"score"`
}

// EventSearchResponse is the search result page.
type EventSearchResponse struct {
	Hits   []EventSearchHit `json:"hits"`
	Total  uint64           `json:"total"`
	TookMs float64          `json:"took_ms"`
}

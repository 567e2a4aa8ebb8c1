package models

import "time"

// Alert is one alert record as received from a monitoring source.
type Alert struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	Source    string            `json:"source"`
	Severity  string            `json:"severity"`
	Message   string            `json:"message,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// CorrelationRule controls how alerts are grouped. Missing tag values
// group under "unknown".
type CorrelationRule struct {
	Name          string   `json:"name,omitempty" yaml:"name"`
	TimeWindow    Duration `json:"time_window" yaml:"time_window"`
	GroupByTags   []string `json:"group_by_tags,omitempty" yaml:"group_by_tags"`
	GroupBySource bool     `json:"group_by_source" yaml:"group_by_source"`
	MinAlerts     int      `json:"min_alerts" yaml:"min_alerts"`
}

// AlertGroup is a correlated bundle of alerts sharing a group key
// within a time window.
type AlertGroup struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Alerts    []*Alert  `json:"alerts"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// AlertGroupSummary condenses one group for operators.
type AlertGroupSummary struct {
	GroupID          string         `json:"group_id"`
	Key              string         `json:"key"`
	Count            int            `json:"count"`
	DominantSource   string         `json:"dominant_source"`
	DominantSeverity string         `json:"dominant_severity"`
	Earliest         time.Time      `json:"earliest"`
	Latest           time.Time      `json:"latest"`
	DurationSeconds  float64        `json:"duration_seconds"`
	SourceCounts     map[string]int `json:"source_counts"`
	SeverityCounts   map[string]int `json:"severity_counts"`
}

package models

import "time"

// Recommended action categories.
const (
	ActionInvestigate = "investigate"
	ActionFix         = "fix"
	ActionMonitor     = "monitor"
	ActionDocument    = "document"
)

// Action priorities, 1 is highest.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
)

// RootCause is one ranked hypothesis about what started an incident.
type RootCause struct {
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Evidence    []string `json:"evidence"`
}

// RecommendedAction is one remediation step.
type RecommendedAction struct {
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Category    string `json:"category"`
}

// TimeRange bounds an incident.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// GraphNode is the serializable projection of one causal-graph node.
type GraphNode struct {
	ID         string     `json:"id"`
	ErrorCount int        `json:"error_count"`
	FirstError *time.Time `json:"first_error,omitempty"`
	LastError  *time.Time `json:"last_error,omitempty"`
}

// GraphEdge is the serializable projection of one causal-graph edge.
type GraphEdge struct {
	From             string   `json:"from"`
	To               string   `json:"to"`
	Confidence       float64  `json:"confidence"`
	TimeDeltaSeconds float64  `json:"time_delta_seconds"`
	Evidence         []string `json:"evidence,omitempty"`
}

// CausalGraphProjection is the wire form of a causal graph.
type CausalGraphProjection struct {
	Nodes      []GraphNode `json:"nodes"`
	Edges      []GraphEdge `json:"edges"`
	RootCauses []string    `json:"root_causes"`
}

// AnalysisResult is the pipeline output. Key names are a stable
// contract; downstream consumers parse them by name.
type AnalysisResult struct {
	IncidentSummary    string                 `json:"incident_summary"`
	ProbableRootCauses []RootCause            `json:"probable_root_causes"`
	RecommendedActions []RecommendedAction    `json:"recommended_actions"`
	AffectedServices   []string               `json:"affected_services"`
	EventCount         int                    `json:"event_count"`
	TimeRange          *TimeRange             `json:"time_range"`
	CausalGraph        *CausalGraphProjection `json:"causal_graph"`
	Metadata           map[string]interface{} `json:"metadata"`
}

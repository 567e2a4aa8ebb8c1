package services

import (
	"github.com/platformbuilds/hindsight/internal/rca"
)

// EngineServices bundles the analysis-side services the API serves.
// Search is nil when disabled; everything else is always present.
type EngineServices struct {
	Analysis *AnalysisService
	Search   *EventSearchService
	Traces   *rca.TraceAnalyzer
	Anomaly  *rca.AnomalyDetector
	Alerts   *rca.AlertCorrelator
}

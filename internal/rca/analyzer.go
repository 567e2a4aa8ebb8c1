package rca

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
)

// Confidence tiers for root-cause hypotheses.
const (
	HighConfidence   = 0.8
	MediumConfidence = 0.5
	LowConfidence    = 0.3
)

// maxServicesInSummary bounds how many service names the prose summary
// spells out before switching to "+N more".
const maxServicesInSummary = 3

// AnalyzerConfig tunes the heuristic analyzer.
type AnalyzerConfig struct {
	// TopErrors is the number of repeated messages kept in pattern
	// stats. Default 5.
	TopErrors int

	// RepeatedErrorThreshold is the event share one message must reach
	// to produce a pattern hypothesis. Default 0.5.
	RepeatedErrorThreshold float64
}

// DefaultAnalyzerConfig returns the analyzer defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		TopErrors:              DefaultTopErrors,
		RepeatedErrorThreshold: RepeatedErrorThreshold,
	}
}

func (c AnalyzerConfig) withDefaults() AnalyzerConfig {
	if c.TopErrors <= 0 {
		c.TopErrors = DefaultTopErrors
	}
	if c.RepeatedErrorThreshold <= 0 {
		c.RepeatedErrorThreshold = RepeatedErrorThreshold
	}
	return c
}

// Analyzer fuses an incident group, its causal graph and the error
// pattern stats into the final analysis result. Analysis is pure: the
// same inputs always produce the same result.
type Analyzer struct {
	cfg AnalyzerConfig
	log logging.Logger
}

// NewAnalyzer builds an analyzer. A nil logger is replaced by a no-op.
func NewAnalyzer(cfg AnalyzerConfig, log logging.Logger) *Analyzer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Analyzer{cfg: cfg.withDefaults(), log: log}
}

// Analyze produces the analysis result for one incident group. The
// graph may be nil, in which case it is built from the group with the
// default causal window.
func (a *Analyzer) Analyze(group *IncidentGroup, graph *CausalGraph) *models.AnalysisResult {
	if group == nil || len(group.Events) == 0 {
		return emptyResult()
	}
	if graph == nil {
		// Construction over a well-formed group cannot produce
		// self-loops or dangling endpoints.
		graph, _ = BuildCausalGraph(group, CausalWindow)
	}

	stats := ComputePatternStats(group, a.cfg.TopErrors)
	roots := graph.RootCauses()
	ordered := servicesByErrorCount(graph)

	result := &models.AnalysisResult{
		IncidentSummary:    a.buildSummary(group, roots, ordered),
		ProbableRootCauses: a.buildHypotheses(graph, roots, stats),
		RecommendedActions: a.buildRecommendations(group, roots, ordered),
		AffectedServices:   ordered,
		EventCount:         len(group.Events),
		CausalGraph:        graph.Projection(),
		Metadata:           a.buildMetadata(group, stats),
	}
	if group.StartTime != nil && group.EndTime != nil {
		result.TimeRange = &models.TimeRange{Start: *group.StartTime, End: *group.EndTime}
	}

	a.log.Debug("incident analyzed",
		"events", result.EventCount,
		"services", len(result.AffectedServices),
		"root_causes", len(roots),
	)
	return result
}

func emptyResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		IncidentSummary:    "No events to analyze",
		ProbableRootCauses: []models.RootCause{},
		RecommendedActions: []models.RecommendedAction{},
		AffectedServices:   []string{},
		EventCount:         0,
		Metadata: map[string]interface{}{
			"llm_analysis":   false,
			"engine_version": EngineVersion,
		},
	}
}

// servicesByErrorCount orders the graph's services by descending error
// count, then lexicographically.
func servicesByErrorCount(graph *CausalGraph) []string {
	nodes := graph.Nodes()
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].ErrorCount != nodes[j].ErrorCount {
			return nodes[i].ErrorCount > nodes[j].ErrorCount
		}
		return nodes[i].ID < nodes[j].ID
	})
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func (a *Analyzer) buildSummary(group *IncidentGroup, roots, ordered []string) string {
	var b strings.Builder

	noun := "events"
	if len(group.Events) == 1 {
		noun = "event"
	}
	svcNoun := "services"
	if len(ordered) == 1 {
		svcNoun = "service"
	}
	fmt.Fprintf(&b, "Analyzed %d %s across %d %s", len(group.Events), noun, len(ordered), svcNoun)

	if len(ordered) > 0 {
		shown := ordered
		var extra int
		if len(shown) > maxServicesInSummary {
			extra = len(shown) - maxServicesInSummary
			shown = shown[:maxServicesInSummary]
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(shown, ", "))
		if extra > 0 {
			fmt.Fprintf(&b, " +%d more", extra)
		}
		b.WriteString(")")
	}
	b.WriteString(".")

	if len(roots) > 0 {
		fmt.Fprintf(&b, " Root cause candidates: %s.", strings.Join(roots, ", "))
	}
	if group.Severity != "" {
		fmt.Fprintf(&b, " Highest severity: %s.", group.Severity)
	}
	return b.String()
}

func (a *Analyzer) buildHypotheses(graph *CausalGraph, roots []string, stats *PatternStats) []models.RootCause {
	hypotheses := make([]models.RootCause, 0, len(roots)+1)

	for _, svc := range roots {
		node, err := graph.Node(svc)
		if err != nil {
			continue
		}
		evidence := []string{fmt.Sprintf("%d errors observed in %s", node.ErrorCount, svc)}
		if node.FirstError != nil {
			evidence = append(evidence, fmt.Sprintf("first error at %s",
				node.FirstError.UTC().Format(time.RFC3339)))
		}
		if downstream := graph.Outgoing(svc); len(downstream) > 0 {
			evidence = append(evidence, fmt.Sprintf("likely caused errors in %s",
				strings.Join(downstream, ", ")))
		}
		hypotheses = append(hypotheses, models.RootCause{
			Description: fmt.Sprintf("%s service failure or degradation", svc),
			Confidence:  HighConfidence,
			Evidence:    evidence,
		})
	}

	if share := stats.TopErrorShare(); share >= a.cfg.RepeatedErrorThreshold {
		top := stats.MostCommonErrors[0]
		hypotheses = append(hypotheses, models.RootCause{
			Description: fmt.Sprintf("Repeated error pattern: %q", top.Message),
			Confidence:  MediumConfidence,
			Evidence: []string{
				fmt.Sprintf("message occurred %d times", top.Count),
				fmt.Sprintf("accounts for %.0f%% of events in the incident", share*100),
			},
		})
	}

	if len(hypotheses) == 0 {
		hypotheses = append(hypotheses, models.RootCause{
			Description: "Cascading failure across multiple services",
			Confidence:  LowConfidence,
			Evidence:    []string{"no dominant failure pattern identified"},
		})
	}

	return hypotheses
}

func (a *Analyzer) buildRecommendations(group *IncidentGroup, roots, ordered []string) []models.RecommendedAction {
	var actions []models.RecommendedAction

	if len(roots) > 0 {
		actions = append(actions, models.RecommendedAction{
			Description: fmt.Sprintf("Investigate %s for the initial failure", strings.Join(roots, ", ")),
			Priority:    models.PriorityCritical,
			Category:    models.ActionInvestigate,
		})
	}

	for _, e := range group.Events {
		if e.Level == models.LevelCritical || e.Level == models.LevelFatal {
			actions = append(actions, models.RecommendedAction{
				Description: "Review critical errors immediately",
				Priority:    models.PriorityCritical,
				Category:    models.ActionInvestigate,
			})
			break
		}
	}

	limit := maxServicesInSummary
	if len(ordered) < limit {
		limit = len(ordered)
	}
	for _, svc := range ordered[:limit] {
		actions = append(actions, models.RecommendedAction{
			Description: fmt.Sprintf("Check %s logs, metrics, and recent deployments", svc),
			Priority:    models.PriorityHigh,
			Category:    models.ActionInvestigate,
		})
	}

	actions = append(actions,
		models.RecommendedAction{
			Description: "Set up alerts for similar error patterns",
			Priority:    models.PriorityMedium,
			Category:    models.ActionMonitor,
		},
		models.RecommendedAction{
			Description: "Document this incident in a postmortem",
			Priority:    models.PriorityLow,
			Category:    models.ActionDocument,
		},
	)

	return actions
}

func (a *Analyzer) buildMetadata(group *IncidentGroup, stats *PatternStats) map[string]interface{} {
	md := map[string]interface{}{
		"llm_analysis":   false,
		"engine_version": EngineVersion,
	}
	if group.Severity != "" {
		md["severity"] = string(group.Severity)
	}
	if len(stats.MostCommonErrors) > 0 {
		top := stats.MostCommonErrors[0]
		md["top_error"] = top.Message
		md["top_error_count"] = top.Count
		md["top_error_share"] = stats.TopErrorShare()
		md["pattern_summary"] = fmt.Sprintf("%q seen %d times (%.0f%% of error events)",
			top.Message, top.Count, stats.TopErrorShare()*100)
	}
	levels := make(map[string]int, len(stats.ErrorTypes))
	for lvl, n := range stats.ErrorTypes {
		levels[string(lvl)] = n
	}
	if len(levels) > 0 {
		md["error_types"] = levels
	}
	return md
}

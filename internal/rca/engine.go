package rca

import (
	"context"
	"fmt"
	"time"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
)

// EngineVersion tags analysis results so cached entries survive
// heuristic changes without serving stale shapes.
const EngineVersion = "1.2.0"

// Grouping strategies accepted by Options.GroupBy.
const (
	GroupByTime        = "time"
	GroupByServiceTime = "service_time"
)

// Options configures one analysis run.
type Options struct {
	// GroupBy selects the grouping strategy, GroupByTime by default.
	GroupBy string

	// Grouping holds window and minimum-size settings.
	Grouping GroupingConfig

	// CausalWindow bounds temporal edges, CausalWindow constant by
	// default.
	CausalWindow time.Duration

	// Analyzer tunes the heuristic analyzer.
	Analyzer AnalyzerConfig
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		GroupBy:      GroupByTime,
		Grouping:     DefaultGroupingConfig(),
		CausalWindow: CausalWindow,
		Analyzer:     DefaultAnalyzerConfig(),
	}
}

func (o Options) withDefaults() Options {
	if o.GroupBy == "" {
		o.GroupBy = GroupByTime
	}
	o.Grouping = o.Grouping.withDefaults()
	if o.CausalWindow <= 0 {
		o.CausalWindow = CausalWindow
	}
	o.Analyzer = o.Analyzer.withDefaults()
	return o
}

// Engine runs the analysis pipeline: group, build the causal graph,
// analyze. Implementations are safe for concurrent use; each call owns
// its inputs exclusively.
type Engine interface {
	// AnalyzeEvents groups the events and produces one analysis result
	// per incident group, in deterministic group order.
	AnalyzeEvents(ctx context.Context, events []*models.Event, opts Options) ([]*models.AnalysisResult, error)

	// AnalyzeGroup analyzes one pre-built incident group.
	AnalyzeGroup(ctx context.Context, group *IncidentGroup, opts Options) (*models.AnalysisResult, error)
}

type engineImpl struct {
	log logging.Logger
}

// NewEngine builds the default pipeline engine.
func NewEngine(log logging.Logger) Engine {
	if log == nil {
		log = logging.NewNop()
	}
	return &engineImpl{log: log}
}

func (e *engineImpl) AnalyzeEvents(ctx context.Context, events []*models.Event, opts Options) ([]*models.AnalysisResult, error) {
	opts = opts.withDefaults()

	var groups []*IncidentGroup
	switch opts.GroupBy {
	case GroupByTime:
		groups = GroupByTimeWindow(events, opts.Grouping)
	case GroupByServiceTime:
		groups = GroupByServiceThenTime(events, opts.Grouping)
	default:
		return nil, fmt.Errorf("unknown grouping strategy %q", opts.GroupBy)
	}

	e.log.Debug("events grouped", "events", len(events), "groups", len(groups), "strategy", opts.GroupBy)

	results := make([]*models.AnalysisResult, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.AnalyzeGroup(ctx, g, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *engineImpl) AnalyzeGroup(ctx context.Context, group *IncidentGroup, opts Options) (*models.AnalysisResult, error) {
	opts = opts.withDefaults()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if group == nil || len(group.Events) == 0 {
		return emptyResult(), nil
	}

	graph, err := BuildCausalGraph(group, opts.CausalWindow)
	if err != nil {
		return nil, fmt.Errorf("build causal graph: %w", err)
	}

	analyzer := NewAnalyzer(opts.Analyzer, e.log)
	return analyzer.Analyze(group, graph), nil
}

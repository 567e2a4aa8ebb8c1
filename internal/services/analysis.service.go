package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/ingest"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/monitoring"
	"github.com/platformbuilds/hindsight/internal/rca"
	"github.com/platformbuilds/hindsight/internal/tracing"
	"github.com/platformbuilds/hindsight/pkg/cache"
)

// AnalysisService orchestrates the full pipeline around the core engine:
// normalization, grouping, per-group result caching, heuristic analysis and
// optional LLM enrichment. The engine stays pure; cross-cutting concerns
// (cache, metrics, traces) live here.
type AnalysisService struct {
	engine     rca.Engine
	cache      cache.ValkeyCache
	llm        *LLMService // nil when no provider is configured
	cfg        config.AnalysisConfig
	tracer     *tracing.PipelineTracer
	normalizer *ingest.Normalizer
	logger     logging.Logger
}

func NewAnalysisService(engine rca.Engine, valkeyCache cache.ValkeyCache, llm *LLMService, cfg config.AnalysisConfig, log logging.Logger) *AnalysisService {
	if log == nil {
		log = logging.NewNop()
	}
	return &AnalysisService{
		engine:     engine,
		cache:      valkeyCache,
		llm:        llm,
		cfg:        cfg,
		tracer:     tracing.NewPipelineTracer("hindsight-analysis"),
		normalizer: ingest.NewNormalizer(),
		logger:     log,
	}
}

// Options translates per-request overrides onto the configured defaults.
func (s *AnalysisService) Options(req *models.AnalyzeRequest) rca.Options {
	opts := rca.DefaultOptions()

	if s.cfg.GroupBy != "" {
		opts.GroupBy = s.cfg.GroupBy
	}
	if s.cfg.GroupWindowSeconds > 0 {
		opts.Grouping.Window = s.cfg.GroupWindow()
	}
	if s.cfg.MinGroupSize > 0 {
		opts.Grouping.MinEvents = s.cfg.MinGroupSize
	}
	if s.cfg.CausalWindowSeconds > 0 {
		opts.CausalWindow = s.cfg.CausalWindow()
	}
	if s.cfg.TopErrors > 0 {
		opts.Analyzer.TopErrors = s.cfg.TopErrors
	}

	if req != nil {
		if req.GroupBy != "" {
			opts.GroupBy = req.GroupBy
		}
		if req.WindowSeconds > 0 {
			opts.Grouping.Window = time.Duration(req.WindowSeconds) * time.Second
		}
		if req.MinEvents > 0 {
			opts.Grouping.MinEvents = req.MinEvents
		}
	}
	return opts
}

// ErrInvalidRequest marks failures caused by the submitted payload so
// the API layer can answer 400 instead of 500.
var ErrInvalidRequest = errors.New("invalid request")

// RunPipeline normalizes raw records and analyzes the resulting events.
// Records that fail normalization are skipped, matching lenient ingestion.
func (s *AnalysisService) RunPipeline(ctx context.Context, req *models.AnalyzeRequest, trigger string) ([]*models.AnalysisResult, error) {
	if req == nil || len(req.Records) == 0 {
		return nil, fmt.Errorf("%w: no records to analyze", ErrInvalidRequest)
	}

	events := make([]*models.Event, 0, len(req.Records))
	skipped := 0
	for _, raw := range req.Records {
		event, err := s.normalizer.Normalize(ingest.Record(raw))
		if err != nil {
			skipped++
			continue
		}
		events = append(events, event)
	}
	if skipped > 0 {
		s.logger.Debug("records skipped during normalization", "skipped", skipped, "total", len(req.Records))
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: none of the %d records could be normalized", ErrInvalidRequest, len(req.Records))
	}

	return s.AnalyzeEvents(ctx, events, s.Options(req), req.UseLLM, trigger)
}

// AnalyzeEvents groups the events and produces one analysis result per
// incident group. Cached results are reused when the group content hash
// matches a previous run; fresh results are enriched and cached.
func (s *AnalysisService) AnalyzeEvents(ctx context.Context, events []*models.Event, opts rca.Options, useLLM bool, trigger string) ([]*models.AnalysisResult, error) {
	analysisID := uuid.New().String()
	start := time.Now()

	ctx, span := s.tracer.StartAnalysisSpan(ctx, analysisID, trigger, len(events))
	defer span.End()

	groups, err := s.groupEvents(ctx, events, opts)
	if err != nil {
		s.tracer.RecordError(span, err)
		monitoring.RecordAnalysis(trigger, false)
		return nil, err
	}

	results := make([]*models.AnalysisResult, 0, len(groups))
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			s.tracer.RecordError(span, err)
			monitoring.RecordAnalysis(trigger, false)
			return nil, err
		}

		result, err := s.analyzeGroup(ctx, group, opts, useLLM)
		if err != nil {
			s.tracer.RecordError(span, err)
			monitoring.RecordAnalysis(trigger, false)
			return nil, err
		}
		results = append(results, result)
	}

	s.tracer.RecordPipelineMetrics(span, time.Since(start), len(groups), true)
	monitoring.RecordAnalysis(trigger, true)

	s.logger.Info("analysis pipeline completed",
		"analysis_id", analysisID, "trigger", trigger,
		"events", len(events), "groups", len(groups),
		"duration_ms", time.Since(start).Milliseconds())
	return results, nil
}

func (s *AnalysisService) groupEvents(ctx context.Context, events []*models.Event, opts rca.Options) ([]*rca.IncidentGroup, error) {
	_, stageSpan := s.tracer.StartStageSpan(ctx, "group")
	defer stageSpan.End()
	stageStart := time.Now()

	var groups []*rca.IncidentGroup
	switch opts.GroupBy {
	case rca.GroupByServiceTime:
		groups = rca.GroupByServiceThenTime(events, opts.Grouping)
	case rca.GroupByTime, "":
		groups = rca.GroupByTimeWindow(events, opts.Grouping)
	default:
		return nil, fmt.Errorf("%w: unknown grouping strategy %q", ErrInvalidRequest, opts.GroupBy)
	}

	monitoring.RecordAnalysisStage("group", time.Since(stageStart))
	return groups, nil
}

func (s *AnalysisService) analyzeGroup(ctx context.Context, group *rca.IncidentGroup, opts rca.Options, useLLM bool) (*models.AnalysisResult, error) {
	hash := GroupHash(group)

	if cached := s.lookupCached(ctx, hash); cached != nil {
		return cached, nil
	}

	stageStart := time.Now()
	stageCtx, stageSpan := s.tracer.StartStageSpan(ctx, "analyze")
	result, err := s.engine.AnalyzeGroup(stageCtx, group, opts)
	stageSpan.End()
	if err != nil {
		return nil, err
	}
	monitoring.RecordAnalysisStage("analyze", time.Since(stageStart))

	if result.Metadata == nil {
		result.Metadata = make(map[string]interface{})
	}
	result.Metadata["group_hash"] = hash

	if useLLM && s.llm != nil {
		llmStart := time.Now()
		llmCtx, llmSpan := s.tracer.StartLLMSpan(ctx, s.llm.GetProviderName(), s.llm.GetModelName())
		enrichErr := s.llm.EnrichAnalysis(llmCtx, result)
		s.tracer.RecordLLMMetrics(llmSpan, time.Since(llmStart), enrichErr == nil)
		llmSpan.End()
		monitoring.RecordAnalysisStage("llm", time.Since(llmStart))
	}

	s.storeCached(ctx, hash, result)
	return result, nil
}

// lookupCached returns the cached result for the hash, or nil.
func (s *AnalysisService) lookupCached(ctx context.Context, hash string) *models.AnalysisResult {
	if s.cache == nil || s.cfg.CacheTTLSeconds <= 0 {
		monitoring.RecordAnalysisCacheLookup("bypass")
		return nil
	}

	lookupStart := time.Now()
	cacheCtx, cacheSpan := s.tracer.StartCacheOperationSpan(ctx, "get", hash)
	cached, err := s.cache.GetCachedAnalysisResult(cacheCtx, hash)
	s.tracer.RecordCacheMetrics(cacheSpan, err == nil, time.Since(lookupStart))
	cacheSpan.End()

	if err != nil {
		monitoring.RecordAnalysisCacheLookup("miss")
		monitoring.RecordCacheOperation("get", "miss", time.Since(lookupStart))
		return nil
	}

	monitoring.RecordAnalysisCacheLookup("hit")
	monitoring.RecordCacheOperation("get", "hit", time.Since(lookupStart))
	s.logger.Debug("analysis cache hit", "group_hash", hash)
	return cached
}

func (s *AnalysisService) storeCached(ctx context.Context, hash string, result *models.AnalysisResult) {
	if s.cache == nil || s.cfg.CacheTTLSeconds <= 0 {
		return
	}

	storeStart := time.Now()
	ttl := time.Duration(s.cfg.CacheTTLSeconds) * time.Second
	if err := s.cache.CacheAnalysisResult(ctx, hash, result, ttl); err != nil {
		monitoring.RecordCacheOperation("set", "error", time.Since(storeStart))
		s.logger.Warn("failed to cache analysis result", "group_hash", hash, "error", err)
		return
	}
	monitoring.RecordCacheOperation("set", "success", time.Since(storeStart))
}

// GroupHash computes a stable identity for an incident group from its event
// content. Identical groups hash identically across runs, which keys the
// result cache.
func GroupHash(group *rca.IncidentGroup) string {
	h := sha256.New()
	for _, event := range group.Events {
		if event == nil {
			continue
		}
		fmt.Fprintf(h, "%s|%d|%s|%s\n",
			event.Service, event.When().UnixNano(), event.Level, event.Message)
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:16])
}

// ================================
// internal/monitoring/metrics.go - Self-monitoring for HINDSIGHT
// ================================

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hindsight_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Ingestion metrics
	IngestedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_ingested_events_total",
			Help: "Total number of events accepted by ingest adapters",
		},
		[]string{"format"},
	)

	IngestSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_ingest_skipped_total",
			Help: "Total number of records skipped during lenient ingestion",
		},
		[]string{"format"},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hindsight_ingest_duration_seconds",
			Help:    "Time spent parsing and normalizing an ingest payload",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0},
		},
		[]string{"format"},
	)

	// Analysis pipeline metrics
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_analyses_total",
			Help: "Total number of root cause analyses executed",
		},
		[]string{"trigger", "status"}, // trigger: api/webhook, status: success/error
	)

	AnalysisStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hindsight_analysis_stage_duration_seconds",
			Help:    "Duration of individual analysis pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"stage"}, // group, graph, analyze, llm
	)

	AnalysisCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_analysis_cache_requests_total",
			Help: "Analysis result cache lookups by outcome",
		},
		[]string{"result"}, // hit, miss, bypass
	)

	// LLM provider metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_llm_requests_total",
			Help: "Total number of LLM enrichment calls",
		},
		[]string{"provider", "status"}, // status: success, error, open
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hindsight_llm_request_duration_seconds",
			Help:    "LLM call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hindsight_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Webhook metrics
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_webhook_events_total",
			Help: "Total number of webhook events received",
		},
		[]string{"source", "result"}, // result: accepted, unverified, rejected, rate_limited
	)

	// Valkey cache metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_cache_requests_total",
			Help: "Total number of cache requests",
		},
		[]string{"operation", "result"}, // get/set/delete, hit/miss/error
	)

	CacheRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hindsight_cache_request_duration_seconds",
			Help:    "Cache request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	// Live event streaming
	ActiveWebSocketConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hindsight_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
		[]string{"stream_type"},
	)

	WebSocketDroppedFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_websocket_dropped_frames_total",
			Help: "Frames dropped because a subscriber could not keep up",
		},
		[]string{"stream_type"},
	)

	// Event search metrics
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_search_queries_total",
			Help: "Total number of event search queries",
		},
		[]string{"status"},
	)

	SearchIndexedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hindsight_search_indexed_events",
			Help: "Number of events currently held in the search index",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hindsight_errors_total",
			Help: "Total number of errors by component",
		},
		[]string{"type", "component"},
	)
)

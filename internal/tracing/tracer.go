package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider manages the lifecycle of the OpenTelemetry tracer
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// PipelineTracer provides distributed tracing for analysis pipelines
type PipelineTracer struct {
	tracer trace.Tracer
}

// NewTracerProvider creates a new OpenTelemetry tracer provider exporting
// to the given OTLP gRPC collector. sampleRatio selects the fraction of
// root traces recorded; child spans follow their parent's decision.
func NewTracerProvider(serviceName, serviceVersion, otlpEndpoint string, sampleRatio float64, insecure bool) (*TracerProvider, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(otlpEndpoint),
	}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.ServiceNamespaceKey.String("hindsight"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)

	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown gracefully shuts down the tracer provider
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// NewPipelineTracer creates a new pipeline tracer
func NewPipelineTracer(serviceName string) *PipelineTracer {
	tracer := otel.Tracer(serviceName)
	return &PipelineTracer{tracer: tracer}
}

// StartAnalysisSpan starts the root span for one analysis run
func (pt *PipelineTracer) StartAnalysisSpan(ctx context.Context, analysisID, trigger string, eventCount int) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, "analysis",
		trace.WithAttributes(
			attribute.String("analysis.id", analysisID),
			attribute.String("analysis.trigger", trigger),
			attribute.Int("analysis.event_count", eventCount),
			attribute.String("component", "analysis-pipeline"),
		),
	)
	return ctx, span
}

// StartStageSpan starts a span for one pipeline stage (group, graph, analyze)
func (pt *PipelineTracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, "pipeline_stage",
		trace.WithAttributes(
			attribute.String("stage.name", stage),
			attribute.String("component", "analysis-pipeline"),
		),
	)
	return ctx, span
}

// StartIngestSpan starts a span for an ingest adapter run
func (pt *PipelineTracer) StartIngestSpan(ctx context.Context, format string) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, "ingest",
		trace.WithAttributes(
			attribute.String("ingest.format", format),
			attribute.String("component", "ingest"),
		),
	)
	return ctx, span
}

// StartLLMSpan starts a span for an LLM enrichment call
func (pt *PipelineTracer) StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, "llm_enrichment",
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
			attribute.String("component", "llm"),
		),
	)
	return ctx, span
}

// StartCacheOperationSpan starts a span for cache operations
func (pt *PipelineTracer) StartCacheOperationSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, "cache_operation",
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("cache.key", key),
			attribute.String("component", "cache"),
		),
	)
	return ctx, span
}

// RecordPipelineMetrics records run outcome metrics on a span
func (pt *PipelineTracer) RecordPipelineMetrics(span trace.Span, duration time.Duration, groupCount int, success bool) {
	span.SetAttributes(
		attribute.Int64("analysis.duration_ms", duration.Milliseconds()),
		attribute.Int("analysis.group_count", groupCount),
		attribute.Bool("analysis.success", success),
	)

	if !success {
		span.SetStatus(codes.Error, "analysis failed")
	}
}

// RecordLLMMetrics records LLM call metrics on a span
func (pt *PipelineTracer) RecordLLMMetrics(span trace.Span, duration time.Duration, success bool) {
	span.SetAttributes(
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
		attribute.Bool("llm.success", success),
	)

	if !success {
		span.SetStatus(codes.Error, "llm call failed")
	}
}

// RecordCacheMetrics records cache operation metrics on a span
func (pt *PipelineTracer) RecordCacheMetrics(span trace.Span, hit bool, duration time.Duration) {
	span.SetAttributes(
		attribute.Bool("cache.hit", hit),
		attribute.Int64("cache.duration_ms", duration.Milliseconds()),
	)
}

// RecordError records an error on a span
func (pt *PipelineTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}

// Global tracer instance
var globalPipelineTracer *PipelineTracer

// InitGlobalTracer initializes the global pipeline tracer
func InitGlobalTracer(serviceName string) {
	globalPipelineTracer = NewPipelineTracer(serviceName)
}

// GetGlobalTracer returns the global pipeline tracer
func GetGlobalTracer() *PipelineTracer {
	return globalPipelineTracer
}

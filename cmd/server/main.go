package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/hindsight/internal/api"
	"github.com/platformbuilds/hindsight/internal/api/handlers"
	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/ingest"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/rca"
	"github.com/platformbuilds/hindsight/internal/services"
	"github.com/platformbuilds/hindsight/internal/tracing"
	"github.com/platformbuilds/hindsight/pkg/cache"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting HINDSIGHT", "version", handlers.ServiceVersion, "environment", cfg.Environment)

	// Shared cache; falls back to in-memory when no nodes are configured
	valkeyCache := cache.New(cfg.Cache.Nodes, cfg.Cache.DB, cfg.Cache.Username, cfg.Cache.Password, cfg.Cache.TTLDuration(), logger)

	// Optional OTLP tracing for the analysis pipeline
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint != "" {
		tp, err := tracing.NewTracerProvider("hindsight", handlers.ServiceVersion, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio, cfg.Tracing.Insecure)
		if err != nil {
			logger.Error("Failed to initialize tracing, continuing without it", "error", err)
		} else {
			tracing.InitGlobalTracer("hindsight")
			logger.Info("OTLP tracing enabled", "endpoint", cfg.Tracing.Endpoint, "sample_ratio", cfg.Tracing.SampleRatio)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Error("Tracer shutdown failed", "error", err)
				}
			}()
		}
	}

	hlog := logging.FromCoreLogger(logger)

	// Optional LLM enrichment
	var llm *services.LLMService
	if cfg.LLM.Enabled() {
		llm, err = services.NewLLMService(cfg.LLM, logger)
		if err != nil {
			logger.Fatal("Failed to initialize LLM provider", "error", err)
		}
		logger.Info("LLM enrichment enabled", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	// Optional full-text event search
	var search *services.EventSearchService
	if cfg.Search.Enabled {
		search, err = services.NewEventSearchService(cfg.Search, hlog)
		if err != nil {
			logger.Fatal("Failed to initialize event search index", "error", err)
		}
		logger.Info("Event search index ready", "max_indexed", cfg.Search.MaxIndexedEvents)
	}

	// Core analysis pipeline
	analysis := services.NewAnalysisService(rca.NewEngine(hlog), valkeyCache, llm, cfg.Analysis, hlog)

	// Ingestion: format adapters plus the webhook receiver
	registry := ingest.NewRegistry(hlog)

	verifier := ingest.NewWebhookVerifier()
	for source, secret := range cfg.Webhooks.Secrets {
		verifier.SetSecret(source, secret)
	}
	receiver := ingest.NewWebhookReceiver(
		verifier,
		ingest.NewWebhookHistory(cfg.Webhooks.HistorySize),
		ingest.NewSourceLimiter(cfg.Webhooks.RatePerSecond, cfg.Webhooks.Burst),
		registry.Normalizer(),
		hlog,
	)

	engineServices := &services.EngineServices{
		Analysis: analysis,
		Search:   search,
		Traces: rca.NewTraceAnalyzer(rca.TraceAnalyzerConfig{
			SlowSpanThreshold: cfg.Traces.SlowSpanThreshold(),
			ErrorWindow:       cfg.Traces.ErrorWindow(),
		}, hlog),
		Anomaly: rca.NewAnomalyDetector(rca.AnomalyDetectorConfig{
			MinHistory:    cfg.Anomaly.MinHistory,
			DefaultMethod: cfg.Anomaly.Method,
		}, hlog),
		Alerts: rca.NewAlertCorrelator(hlog),
	}

	// Alert correlation rules: file-driven when configured
	rules := rca.DefaultCorrelationRules()
	if cfg.Alerts.RulesPath != "" {
		rules, err = rca.LoadCorrelationRules(cfg.Alerts.RulesPath)
		if err != nil {
			logger.Fatal("Failed to load correlation rules", "path", cfg.Alerts.RulesPath, "error", err)
		}
		logger.Info("Correlation rules loaded", "path", cfg.Alerts.RulesPath, "rules", len(rules))
	}

	// Initialize API server
	apiServer := api.NewServer(cfg, logger, valkeyCache, registry, receiver, engineServices, rules)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// Start server
	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed to start", "error", err)
	}

	logger.Info("HINDSIGHT shutdown complete")
}

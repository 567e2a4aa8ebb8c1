package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/api/handlers"
	"github.com/platformbuilds/hindsight/internal/api/middleware"
	ws "github.com/platformbuilds/hindsight/internal/api/websocket"
	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/ingest"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/monitoring"
	"github.com/platformbuilds/hindsight/internal/services"
	"github.com/platformbuilds/hindsight/pkg/cache"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.ValkeyCache
	registry   *ingest.Registry
	receiver   *ingest.WebhookReceiver
	engine     *services.EngineServices
	rules      []models.CorrelationRule
	hub        *ws.Hub
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkeyCache cache.ValkeyCache,
	registry *ingest.Registry,
	receiver *ingest.WebhookReceiver,
	engine *services.EngineServices,
	rules []models.CorrelationRule,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config:   cfg,
		logger:   log,
		cache:    valkeyCache,
		registry: registry,
		receiver: receiver,
		engine:   engine,
		rules:    rules,
		router:   router,
	}

	if cfg.WebSocket.Enabled {
		server.hub = ws.NewHub(cfg.WebSocket, log)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// CORS for browser-based dashboards
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))

	// Request logging
	s.router.Use(middleware.RequestLogger(s.logger))

	// Prometheus request metrics
	s.router.Use(monitoring.HTTPMetricsMiddleware())

	// Rate limiting backed by the shared cache
	if s.config.RateLimit.Enabled {
		s.router.Use(middleware.RateLimiter(s.cache, s.config.RateLimit))
	}

	// Authentication (can be disabled via config.auth.enabled)
	if s.config.Auth.Enabled {
		s.router.Use(middleware.AuthMiddleware(s.config.Auth))
	} else {
		s.router.Use(middleware.NoAuthMiddleware())
		s.logger.Warn("Authentication is DISABLED by configuration; requests will use anonymous/default context")
	}

	// Prometheus metrics endpoint
	monitoring.SetupPrometheusMetrics(s.router)
}

func (s *Server) setupRoutes() {
	hlog := logging.FromCoreLogger(s.logger)

	// Public health endpoints
	healthHandler := handlers.NewHealthHandler(s.cache, s.engine.Search, hlog)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")

	// Batch analysis (the full normalize -> group -> graph -> heuristics run)
	analyzeHandler := handlers.NewAnalyzeHandler(s.engine.Analysis, hlog)
	v1.POST("/analyze", analyzeHandler.Analyze)

	// File/stream ingestion into normalized events
	ingestHandler := handlers.NewIngestHandler(s.registry, s.engine.Search, s.hub, s.config.Ingest, hlog)
	v1.POST("/ingest/:format", ingestHandler.Ingest)
	v1.GET("/ingest/formats", ingestHandler.Formats)

	// Webhook push ingestion (authenticated by per-source HMAC, not JWT)
	webhookHandler := handlers.NewWebhookHandler(s.receiver, s.engine.Search, s.hub, hlog)
	v1.POST("/webhooks/:source", webhookHandler.Receive)
	v1.GET("/webhooks/:source/events", webhookHandler.History)

	// Live event tail over WebSocket
	if s.hub != nil {
		tailHandler := handlers.NewEventsTailHandler(s.hub, s.config.WebSocket, hlog)
		v1.GET("/events/tail", tailHandler.Tail)
	}

	// Full-text event search (503 when the index is disabled)
	searchHandler := handlers.NewSearchHandler(s.engine.Search, hlog)
	v1.POST("/events/search", searchHandler.Search)

	// Trace analysis (OTLP payloads)
	tracesHandler := handlers.NewTracesHandler(s.engine.Traces, hlog)
	v1.POST("/traces/analyze", tracesHandler.Analyze)
	v1.GET("/traces/services", tracesHandler.Services)

	// Error-rate anomaly checks
	anomalyHandler := handlers.NewAnomalyHandler(s.engine.Anomaly, hlog)
	v1.POST("/anomaly/check", anomalyHandler.Check)

	// Alert correlation and the rolling history of correlated groups
	alertHandler := handlers.NewAlertHandler(s.engine.Alerts, s.rules, s.cache, hlog)
	v1.POST("/alerts/correlate", alertHandler.Correlate)
	v1.GET("/alerts/history", alertHandler.History)
}

func (s *Server) Start(ctx context.Context) error {
	if s.hub != nil {
		go s.hub.Run(ctx)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HINDSIGHT REST API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down HINDSIGHT gracefully")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub exposes the tail hub so ingestion paths outside HTTP handlers can
// broadcast. Nil when WebSocket streaming is disabled.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

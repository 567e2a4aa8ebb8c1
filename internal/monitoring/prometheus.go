// Package monitoring provides Prometheus metrics for the HINDSIGHT API.
//
// Usage:
//
//  1. Setup metrics in your main function:
//     router := gin.New()
//     monitoring.SetupPrometheusMetrics(router)
//
//  2. Add HTTP metrics middleware:
//     router.Use(monitoring.HTTPMetricsMiddleware())
//
//  3. Record custom metrics in your handlers:
//
//	// Ingestion
//	monitoring.RecordIngest("jsonl", result.Total-result.Skipped, result.Skipped, time.Since(start))
//
//	// Cache operations
//	monitoring.RecordCacheOperation("get", "hit", time.Since(start))
//
//	// LLM calls
//	monitoring.RecordLLMCall("openai", time.Since(start), true)
//
//	// Webhook events
//	monitoring.RecordWebhookEvent("github", "accepted")
//
// Metric names carry the hindsight_ prefix; see metrics.go for the full
// collector inventory.
package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Active connections gauge, registered alongside the promauto collectors.
var activeConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "hindsight_active_connections",
		Help: "Number of in-flight HTTP requests",
	},
)

// SetupPrometheusMetrics exposes the metrics endpoint on the given router.
// The promauto collectors in metrics.go register themselves with the
// default registry at init time; this adds build info and the endpoint.
func SetupPrometheusMetrics(router gin.IRoutes) {
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "hindsight_build_info",
		Help: "Build information for HINDSIGHT",
		ConstLabels: prometheus.Labels{
			"version":   "v0.3.0",
			"component": "hindsight",
		},
	}, func() float64 { return 1 }))

	_ = prometheus.Register(activeConnections)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		endpoint := normalizeEndpoint(c.FullPath(), c.Request.URL.Path)

		activeConnections.Inc()
		defer activeConnections.Dec()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
		HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)

		if c.Writer.Status() >= 400 {
			ErrorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordIngest records the outcome of one ingest adapter run.
func RecordIngest(format string, accepted, skipped int, duration time.Duration) {
	IngestedEventsTotal.WithLabelValues(format).Add(float64(accepted))
	IngestSkippedTotal.WithLabelValues(format).Add(float64(skipped))
	IngestDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordAnalysis records a completed pipeline run.
func RecordAnalysis(trigger string, success bool) {
	status := "success"
	if !success {
		status = "error"
		ErrorsTotal.WithLabelValues("analysis", trigger).Inc()
	}
	AnalysesTotal.WithLabelValues(trigger, status).Inc()
}

// RecordAnalysisStage records the duration of one pipeline stage.
func RecordAnalysisStage(stage string, duration time.Duration) {
	AnalysisStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAnalysisCacheLookup records an analysis result cache lookup.
// result is one of: hit, miss, bypass.
func RecordAnalysisCacheLookup(result string) {
	AnalysisCacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordCacheOperation records cache operation metrics
func RecordCacheOperation(operation, result string, duration time.Duration) {
	CacheRequestsTotal.WithLabelValues(operation, result).Inc()
	CacheRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if result == "error" {
		ErrorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// RecordLLMCall records LLM provider call metrics
func RecordLLMCall(provider string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		ErrorsTotal.WithLabelValues("llm", provider).Inc()
	}
	LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	LLMRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordLLMRejected counts a call short-circuited by an open breaker.
func RecordLLMRejected(provider string) {
	LLMRequestsTotal.WithLabelValues(provider, "open").Inc()
}

// RecordBreakerState mirrors a circuit breaker state transition.
// 0=closed, 1=half-open, 2=open.
func RecordBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordWebhookEvent records a webhook delivery outcome.
// result is one of: accepted, unverified, rejected, rate_limited.
func RecordWebhookEvent(source, result string) {
	WebhookEventsTotal.WithLabelValues(source, result).Inc()
	if result == "rejected" {
		ErrorsTotal.WithLabelValues("webhook", source).Inc()
	}
}

// RecordSearchQuery records an event search execution.
func RecordSearchQuery(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	SearchQueriesTotal.WithLabelValues(status).Inc()
}

// normalizeEndpoint normalizes API endpoints for consistent metrics.
// Routed requests use the gin route template; unrouted ones fall back
// to the raw path with numeric segments collapsed.
func normalizeEndpoint(routePath, rawPath string) string {
	if routePath != "" {
		return routePath
	}

	parts := strings.Split(rawPath, "/")
	for i, part := range parts {
		if isNumeric(part) && i > 0 {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

// isNumeric checks if a string is numeric
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

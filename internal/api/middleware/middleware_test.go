package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/pkg/cache"
	"github.com/platformbuilds/hindsight/pkg/logger"
)

func TestCORS_IsOriginAllowed(t *testing.T) {
	allowed := []string{"https://a.example.com", "*.example.org"}
	if !isOriginAllowed("https://a.example.com", allowed) {
		t.Fatalf("expected exact origin allowed")
	}
	if !isOriginAllowed("https://dash.example.org", allowed) {
		t.Fatalf("expected wildcard subdomain allowed")
	}
	if isOriginAllowed("https://x.example.com", allowed) {
		t.Fatalf("unexpected origin allowed")
	}
	if !isOriginAllowed("http://localhost:3000", nil) {
		t.Fatalf("expected localhost allowed with empty policy")
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(config.CORSConfig{AllowedOrigins: []string{"*"}}))
	r.POST("/api/v1/analyze", func(c *gin.Context) { c.String(200, "ok") })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", http.NoBody)
	req.Header.Set("Origin", "https://dash.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("missing Allow-Origin header")
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("missing Allow-Methods header")
	}
}

func TestRateLimiter_AppliesHeadersAndBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.New("error")
	cch := cache.NewNoopValkeyCache(log)

	r := gin.New()
	// A burst of one with no sustained rate allows exactly one request
	// per window.
	r.Use(RateLimiter(cch, config.RateLimitConfig{Enabled: true, Burst: 1}))
	r.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("first request blocked: %d", w.Code)
	}
	if w.Header().Get("X-Rate-Limit-Remaining") != "0" {
		t.Fatalf("expected zero remaining, got %q", w.Header().Get("X-Rate-Limit-Remaining"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestRateLimiter_DefaultsWhenUnconfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.New("error")
	cch := cache.NewNoopValkeyCache(log)

	r := gin.New()
	r.Use(RateLimiter(cch, config.RateLimitConfig{Enabled: true}))
	r.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if w.Header().Get("X-Rate-Limit-Limit") != "600" {
		t.Fatalf("expected default limit 600, got %q", w.Header().Get("X-Rate-Limit-Limit"))
	}
}

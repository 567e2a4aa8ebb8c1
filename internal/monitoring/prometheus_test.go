package monitoring

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSetupPrometheusMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupPrometheusMetrics(r)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hindsight_build_info") {
		t.Errorf("metrics output missing build info")
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	r.GET("/api/v1/things/:id", func(c *gin.Context) { c.Status(204) })
	SetupPrometheusMetrics(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/things/42", nil))
	if w.Code != 204 {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	// The route template, not the raw path, labels the series.
	if !strings.Contains(w.Body.String(), "/api/v1/things/:id") {
		t.Errorf("expected route template label in metrics output")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	if got := normalizeEndpoint("/api/v1/things/:id", "/api/v1/things/42"); got != "/api/v1/things/:id" {
		t.Errorf("routed path: got %q", got)
	}
	if got := normalizeEndpoint("", "/api/v1/things/42"); got != "/api/v1/things/:id" {
		t.Errorf("unrouted path: got %q", got)
	}
	if got := normalizeEndpoint("", "/health"); got != "/health" {
		t.Errorf("plain path: got %q", got)
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/services"
	"github.com/platformbuilds/hindsight/internal/utils"
	"github.com/platformbuilds/hindsight/pkg/cache"
)

const serviceName = "hindsight"

// ServiceVersion is stamped into health responses. Overridden at build
// time via -ldflags "-X ...handlers.ServiceVersion=v1.2.3".
var ServiceVersion = "dev"

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	cache  cache.ValkeyCache
	search *services.EventSearchService // nil when search is disabled
	logger logging.Logger
}

func NewHealthHandler(valkeyCache cache.ValkeyCache, search *services.EventSearchService, log logging.Logger) *HealthHandler {
	return &HealthHandler{cache: valkeyCache, search: search, logger: log}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   ServiceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready. Readiness follows the cache: the
// in-memory fallback always reports healthy, so a standalone engine is
// ready the moment it boots.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]interface{})
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.cache.HealthCheck(ctx); err != nil {
		checks["cache"] = gin.H{"status": "unhealthy", "error": utils.RedactError(err)}
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["cache"] = gin.H{"status": "healthy"}
	}

	if h.search != nil {
		checks["search"] = gin.H{"status": "healthy", "indexed_events": h.search.Size()}
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   serviceName,
		"version":   ServiceVersion,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

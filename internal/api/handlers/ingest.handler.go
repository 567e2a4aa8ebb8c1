package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/platformbuilds/hindsight/internal/api/websocket"
	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/ingest"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/monitoring"
	"github.com/platformbuilds/hindsight/internal/services"
	"github.com/platformbuilds/hindsight/internal/tracing"
	"github.com/platformbuilds/hindsight/internal/utils"
)

// IngestHandler feeds request bodies through the format adapters.
// Accepted events go to the search index and the live tail when those
// are enabled.
type IngestHandler struct {
	registry *ingest.Registry
	search   *services.EventSearchService // nil when search is disabled
	hub      *websocket.Hub               // nil when the tail is disabled
	cfg      config.IngestConfig
	logger   logging.Logger
}

func NewIngestHandler(registry *ingest.Registry, search *services.EventSearchService, hub *websocket.Hub, cfg config.IngestConfig, log logging.Logger) *IngestHandler {
	return &IngestHandler{
		registry: registry,
		search:   search,
		hub:      hub,
		cfg:      cfg,
		logger:   log,
	}
}

// Ingest handles POST /api/v1/ingest/:format.
func (h *IngestHandler) Ingest(c *gin.Context) {
	format := c.Param("format")
	adapter, err := h.registry.Adapter(format)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(utils.RedactError(err)))
		return
	}

	opts := ingest.Options{
		Strict:         h.cfg.Strict,
		MaxFileSize:    h.cfg.MaxFileSizeBytes(),
		DefaultService: h.cfg.DefaultService,
		TextFormat:     c.Query("text_format"),
	}
	if strict, err := strconv.ParseBool(c.Query("strict")); err == nil {
		opts.Strict = strict
	}
	if svc := c.Query("service"); svc != "" {
		opts.DefaultService = svc
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, opts.MaxFileSize)
	defer body.Close()

	ctx := c.Request.Context()
	if pt := tracing.GetGlobalTracer(); pt != nil {
		var span trace.Span
		ctx, span = pt.StartIngestSpan(ctx, format)
		defer span.End()
	}

	start := time.Now()
	result, err := adapter.Parse(ctx, body, opts)
	if err != nil {
		h.logger.Warn("ingest failed", "format", format, "error", utils.RedactError(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse(utils.RedactError(err)))
		return
	}
	monitoring.RecordIngest(format, result.Total-result.Skipped, result.Skipped, time.Since(start))

	h.fanOut(result.Events)

	c.JSON(http.StatusOK, models.SuccessResponse(models.IngestResponse{
		Events:  result.Events,
		Total:   result.Total,
		Skipped: result.Skipped,
		Reasons: countReasons(result.Reasons),
	}))
}

// Formats handles GET /api/v1/ingest/formats.
func (h *IngestHandler) Formats(c *gin.Context) {
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"formats": h.registry.Formats(),
	}))
}

// fanOut pushes accepted events into the search index and the tail.
func (h *IngestHandler) fanOut(events []*models.Event) {
	if h.search != nil {
		if err := h.search.IndexEvents(events); err != nil {
			h.logger.Warn("failed to index ingested events", "error", utils.RedactError(err))
		}
	}
	if h.hub != nil {
		for _, event := range events {
			h.hub.BroadcastEvent(event)
		}
	}
}

// countReasons collapses the skip reason list into per-reason counters,
// folding per-line prefixes so identical failures count together.
func countReasons(reasons []string) map[string]int {
	if len(reasons) == 0 {
		return nil
	}
	counts := make(map[string]int, len(reasons))
	for _, r := range reasons {
		counts[reasonClass(r)]++
	}
	return counts
}

func reasonClass(r string) string {
	if rest, ok := strings.CutPrefix(r, "line "); ok {
		if _, after, found := strings.Cut(rest, ": "); found {
			return after
		}
	}
	return r
}

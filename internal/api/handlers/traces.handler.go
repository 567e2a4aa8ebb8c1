package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/ingest"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/rca"
	"github.com/platformbuilds/hindsight/internal/utils"
)

// TracesHandler analyzes OTLP trace payloads and serves the
// per-service aggregates collected across requests.
type TracesHandler struct {
	analyzer *rca.TraceAnalyzer
	logger   logging.Logger
}

func NewTracesHandler(analyzer *rca.TraceAnalyzer, log logging.Logger) *TracesHandler {
	return &TracesHandler{analyzer: analyzer, logger: log}
}

// traceFindings is the per-trace slice of the analyze response.
type traceFindings struct {
	TraceID string              `json:"trace_id"`
	Spans   int                 `json:"spans"`
	Issues  []models.TraceIssue `json:"issues"`
	Error   string              `json:"error,omitempty"`
}

// Analyze handles POST /api/v1/traces/analyze. The body is an OTLP JSON
// export; every trace in it is analyzed independently, so one malformed
// trace does not sink the batch.
func (h *TracesHandler) Analyze(c *gin.Context) {
	traces, err := ingest.ParseOTLP(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid OTLP payload: "+utils.RedactError(err)))
		return
	}
	if len(traces) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("payload contains no spans"))
		return
	}

	findings := make([]traceFindings, 0, len(traces))
	issueCount := 0
	for _, trace := range traces {
		f := traceFindings{TraceID: trace.TraceID, Spans: len(trace.Spans)}
		issues, err := h.analyzer.AnalyzeTrace(trace)
		if err != nil {
			f.Error = utils.RedactError(err)
		} else {
			f.Issues = issues
			issueCount += len(issues)
		}
		findings = append(findings, f)
	}

	h.logger.Info("trace batch analyzed", "traces", len(traces), "issues", issueCount)
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"traces": findings,
		"count":  len(findings),
	}))
}

// Services handles GET /api/v1/traces/services.
func (h *TracesHandler) Services(c *gin.Context) {
	stats := h.analyzer.ServiceStats()
	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"services": stats,
		"count":    len(stats),
	}))
}

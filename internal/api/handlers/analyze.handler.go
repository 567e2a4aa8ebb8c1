package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/services"
	"github.com/platformbuilds/hindsight/internal/utils"
)

// AnalyzeHandler runs the full pipeline for a submitted batch.
type AnalyzeHandler struct {
	analysis *services.AnalysisService
	logger   logging.Logger
}

func NewAnalyzeHandler(analysis *services.AnalysisService, log logging.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{analysis: analysis, logger: log}
}

// Analyze handles POST /api/v1/analyze.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid analyze request: "+utils.RedactError(err)))
		return
	}

	results, err := h.analysis.RunPipeline(c.Request.Context(), &req, "api")
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		h.logger.Warn("analysis request failed", "records", len(req.Records), "error", utils.RedactError(err))
		c.JSON(status, models.ErrorResponse(utils.RedactError(err)))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"results": results,
		"count":   len(results),
	}))
}

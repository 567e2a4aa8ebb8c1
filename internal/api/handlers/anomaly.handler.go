package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/rca"
	"github.com/platformbuilds/hindsight/internal/utils"
)

// AnomalyHandler exposes the statistical anomaly detector.
type AnomalyHandler struct {
	detector *rca.AnomalyDetector
	logger   logging.Logger
}

func NewAnomalyHandler(detector *rca.AnomalyDetector, log logging.Logger) *AnomalyHandler {
	return &AnomalyHandler{detector: detector, logger: log}
}

// Check handles POST /api/v1/anomaly/check.
func (h *AnomalyHandler) Check(c *gin.Context) {
	var req models.AnomalyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid anomaly request: "+utils.RedactError(err)))
		return
	}

	result, err := h.detector.Check(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(utils.RedactError(err)))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(result))
}

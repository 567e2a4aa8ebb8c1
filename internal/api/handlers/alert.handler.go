package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/rca"
	"github.com/platformbuilds/hindsight/internal/utils"
	"github.com/platformbuilds/hindsight/pkg/cache"
)

const defaultAlertHistoryPage = 50

// AlertHandler correlates alert batches into incident groups and keeps
// the rolling summary history in the cache.
type AlertHandler struct {
	correlator *rca.AlertCorrelator
	rules      []models.CorrelationRule
	cache      cache.ValkeyCache
	logger     logging.Logger
}

func NewAlertHandler(correlator *rca.AlertCorrelator, rules []models.CorrelationRule, valkeyCache cache.ValkeyCache, log logging.Logger) *AlertHandler {
	if len(rules) == 0 {
		rules = rca.DefaultCorrelationRules()
	}
	return &AlertHandler{
		correlator: correlator,
		rules:      rules,
		cache:      valkeyCache,
		logger:     log,
	}
}

// Correlate handles POST /api/v1/alerts/correlate.
func (h *AlertHandler) Correlate(c *gin.Context) {
	var req models.AlertCorrelateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid correlate request: "+utils.RedactError(err)))
		return
	}

	rules := h.rules
	if len(req.Rules) > 0 {
		for _, rule := range req.Rules {
			if err := rca.ValidateRule(rule); err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse(utils.RedactError(err)))
				return
			}
		}
		rules = req.Rules
	}

	keepFirst := true
	if req.KeepFirst != nil {
		keepFirst = *req.KeepFirst
	}

	groups := h.correlator.Correlate(req.Alerts, rules)
	summaries := h.correlator.Summarize(groups)
	suppress := h.correlator.SuppressIDs(groups, keepFirst)

	resp := models.AlertCorrelateResponse{
		Groups:      groups,
		Summaries:   make([]*models.AlertGroupSummary, len(summaries)),
		SuppressIDs: suppress,
	}
	for i := range summaries {
		resp.Summaries[i] = &summaries[i]
		if err := h.cache.AppendAlertHistory(c.Request.Context(), &summaries[i]); err != nil {
			h.logger.Warn("failed to append alert history", "group", summaries[i].GroupID, "error", utils.RedactError(err))
		}
	}

	h.logger.Info("alerts correlated",
		"alerts", len(req.Alerts), "groups", len(groups), "suppressed", len(suppress))
	c.JSON(http.StatusOK, models.SuccessResponse(resp))
}

// History handles GET /api/v1/alerts/history.
func (h *AlertHandler) History(c *gin.Context) {
	limit := int64(defaultAlertHistoryPage)
	if n, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil && n > 0 {
		limit = n
	}

	summaries, err := h.cache.AlertHistory(c.Request.Context(), limit)
	if err != nil {
		h.logger.Warn("alert history lookup failed", "error", utils.RedactError(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("alert history unavailable"))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"summaries": summaries,
		"count":     len(summaries),
	}))
}

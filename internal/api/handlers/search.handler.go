package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/services"
	"github.com/platformbuilds/hindsight/internal/utils"
)

// SearchHandler queries the in-memory event index.
type SearchHandler struct {
	search *services.EventSearchService // nil when search is disabled
	logger logging.Logger
}

func NewSearchHandler(search *services.EventSearchService, log logging.Logger) *SearchHandler {
	return &SearchHandler{search: search, logger: log}
}

// Search handles POST /api/v1/events/search.
func (h *SearchHandler) Search(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("event search is disabled"))
		return
	}

	var req models.EventSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid search request: "+utils.RedactError(err)))
		return
	}

	resp, err := h.search.Search(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("event search failed", "query", req.Query, "error", utils.RedactError(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse(utils.RedactError(err)))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(resp))
}

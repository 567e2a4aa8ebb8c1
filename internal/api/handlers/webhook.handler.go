package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/api/websocket"
	"github.com/platformbuilds/hindsight/internal/ingest"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/monitoring"
	"github.com/platformbuilds/hindsight/internal/services"
	"github.com/platformbuilds/hindsight/internal/utils"
)

const defaultWebhookHistoryPage = 50

// WebhookHandler receives third-party alert payloads. Verified events
// are normalized and fanned out to the search index and the live tail.
type WebhookHandler struct {
	receiver *ingest.WebhookReceiver
	search   *services.EventSearchService // nil when search is disabled
	hub      *websocket.Hub               // nil when the tail is disabled
	logger   logging.Logger
}

func NewWebhookHandler(receiver *ingest.WebhookReceiver, search *services.EventSearchService, hub *websocket.Hub, log logging.Logger) *WebhookHandler {
	return &WebhookHandler{receiver: receiver, search: search, hub: hub, logger: log}
}

// Receive handles POST /api/v1/webhooks/:source.
func (h *WebhookHandler) Receive(c *gin.Context) {
	source := c.Param("source")

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		monitoring.RecordWebhookEvent(source, "malformed")
		c.JSON(http.StatusBadRequest, models.ErrorResponse("webhook payload must be a JSON object"))
		return
	}

	event, err := h.receiver.Receive(source, payload, c.Request.Header)
	if err != nil {
		status, result := webhookFailure(err)
		monitoring.RecordWebhookEvent(source, result)
		h.logger.Warn("webhook rejected", "source", source, "reason", result, "error", utils.RedactError(err))
		c.JSON(status, models.ErrorResponse(utils.RedactError(err)))
		return
	}
	monitoring.RecordWebhookEvent(source, "accepted")

	if normalized, err := h.receiver.Normalize(event); err == nil {
		if h.search != nil {
			if err := h.search.IndexEvent(normalized); err != nil {
				h.logger.Warn("failed to index webhook event", "source", source, "error", utils.RedactError(err))
			}
		}
		if h.hub != nil {
			h.hub.BroadcastEvent(normalized)
		}
	} else {
		h.logger.Debug("webhook event not normalizable", "source", source, "error", utils.RedactError(err))
	}

	c.JSON(http.StatusAccepted, models.SuccessResponse(event))
}

// History handles GET /api/v1/webhooks/:source/events.
func (h *WebhookHandler) History(c *gin.Context) {
	source := c.Param("source")

	limit := defaultWebhookHistoryPage
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = n
	}

	recent := h.receiver.History().Recent(0)
	events := make([]*models.WebhookEvent, 0, limit)
	for _, e := range recent {
		if e.Source != source {
			continue
		}
		events = append(events, e)
		if len(events) >= limit {
			break
		}
	}

	c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
		"source": source,
		"events": events,
		"count":  len(events),
	}))
}

// webhookFailure maps receiver errors onto HTTP statuses and metric
// labels.
func webhookFailure(err error) (int, string) {
	switch {
	case errors.Is(err, ingest.ErrWebhookRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ingest.ErrMissingSignature), errors.Is(err, ingest.ErrSignatureMismatch):
		return http.StatusUnauthorized, "bad_signature"
	default:
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			return http.StatusBadRequest, "invalid"
		}
		return http.StatusInternalServerError, "error"
	}
}

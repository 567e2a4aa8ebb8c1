package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/pkg/cache"
)

// RateLimiter enforces a per-client request budget over one-minute
// windows. Counters live in the shared cache so the limit holds across
// replicas; with the in-memory cache it degrades to per-instance
// limiting. Clients are keyed by authenticated user when present,
// otherwise by IP.
func RateLimiter(valkeyCache cache.ValkeyCache, cfg config.RateLimitConfig) gin.HandlerFunc {
	maxRequests := int64(cfg.RequestsPerSecond*60) + int64(cfg.Burst)
	if maxRequests <= 0 {
		maxRequests = 600
	}

	return func(c *gin.Context) {
		clientID := c.GetString("user_id")
		if clientID == "" {
			clientID = c.ClientIP()
		}

		window := time.Now().Unix() / 60
		key := fmt.Sprintf("rate_limit:%s:%d", clientID, window)

		var currentCount int64
		if countBytes, err := valkeyCache.Get(c.Request.Context(), key); err == nil {
			if count, err := strconv.ParseInt(string(countBytes), 10, 64); err == nil {
				currentCount = count
			}
		}

		if currentCount >= maxRequests {
			c.Header("X-Rate-Limit-Limit", strconv.FormatInt(maxRequests, 10))
			c.Header("X-Rate-Limit-Remaining", "0")
			c.Header("X-Rate-Limit-Reset", strconv.FormatInt((window+1)*60, 10))

			c.JSON(http.StatusTooManyRequests, models.ErrorResponse("rate limit exceeded"))
			c.Abort()
			return
		}

		newCount := currentCount + 1
		// Two-minute TTL outlives the window so counters expire on their own.
		_ = valkeyCache.Set(c.Request.Context(), key, newCount, 2*time.Minute)

		c.Header("X-Rate-Limit-Limit", strconv.FormatInt(maxRequests, 10))
		c.Header("X-Rate-Limit-Remaining", strconv.FormatInt(maxRequests-newCount, 10))
		c.Header("X-Rate-Limit-Reset", strconv.FormatInt((window+1)*60, 10))

		c.Next()
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/hindsight/pkg/logger"
)

// RequestLogger logs every HTTP request with method, path, status and
// latency. Level follows the response code so error traffic stands out
// in aggregated logs.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		userID := "anonymous"
		if param.Keys != nil {
			if uid, exists := param.Keys["user_id"]; exists {
				if uidStr, ok := uid.(string); ok && uidStr != "" {
					userID = uidStr
				}
			}
		}

		fields := []interface{}{
			"method", param.Method,
			"path", param.Path,
			"status", param.StatusCode,
			"latency", param.Latency,
			"client_ip", param.ClientIP,
			"user_agent", param.Request.UserAgent(),
			"user_id", userID,
			"request_id", param.Request.Header.Get("X-Request-ID"),
			"content_length", param.Request.ContentLength,
		}

		if param.ErrorMessage != "" {
			fields = append(fields, "error", param.ErrorMessage)
		}

		switch {
		case param.StatusCode >= 500:
			log.Error("HTTP request", fields...)
		case param.StatusCode >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}

		return ""
	})
}

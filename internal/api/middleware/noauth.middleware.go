package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoAuthMiddleware injects an anonymous identity when auth is disabled
// so request logging and rate limiting still have a stable client key.
func NoAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", "anonymous")
		c.Set("user_roles", []string{"viewer"})

		setSecurityHeaders(c)
		c.Next()
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/models"
)

// AuthMiddleware validates bearer JWTs signed with the configured HMAC
// secret. Health, metrics and webhook endpoints stay public: webhooks
// authenticate with per-source HMAC signatures instead, since external
// senders cannot attach our tokens.
func AuthMiddleware(authConfig config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublicEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse("authentication required"))
			c.Abort()
			return
		}

		claims, err := validateJWTToken(token, authConfig)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse("invalid authentication token"))
			c.Abort()
			return
		}

		c.Set("user_id", claims.userID)
		c.Set("user_roles", claims.roles)

		setSecurityHeaders(c)
		c.Next()
	}
}

// tokenClaims is the subset of JWT claims the API cares about.
type tokenClaims struct {
	userID string
	roles  []string
}

// extractToken gets the bearer token from the Authorization header, or
// from the "token" query parameter for WebSocket upgrades where custom
// headers are unavailable.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	if queryToken := c.Query("token"); queryToken != "" {
		return queryToken
	}

	return ""
}

// validateJWTToken parses and verifies an HMAC-signed JWT. exp and nbf
// claims are checked by the parser when present; expiry_minutes adds a
// maximum age for tokens that carry iat.
func validateJWTToken(tokenString string, authConfig config.AuthConfig) (*tokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(authConfig.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid JWT token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("missing subject in token")
	}

	if authConfig.ExpiryMinutes > 0 {
		if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
			maxAge := time.Duration(authConfig.ExpiryMinutes) * time.Minute
			if time.Since(iat.Time) > maxAge {
				return nil, fmt.Errorf("token exceeded maximum age")
			}
		}
	}

	var roles []string
	if rolesInterface, exists := claims["roles"]; exists {
		if rolesList, ok := rolesInterface.([]interface{}); ok {
			for _, role := range rolesList {
				if roleStr, ok := role.(string); ok {
					roles = append(roles, roleStr)
				}
			}
		}
	}

	return &tokenClaims{userID: userID, roles: roles}, nil
}

// isPublicEndpoint reports whether a path is reachable without a token.
func isPublicEndpoint(path string) bool {
	publicPaths := []string{
		"/health",
		"/ready",
		"/metrics",
		"/api/v1/webhooks/",
	}

	for _, publicPath := range publicPaths {
		if strings.HasPrefix(path, publicPath) {
			return true
		}
	}

	return false
}

func setSecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-XSS-Protection", "1; mode=block")
}

package api

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// requestLogger tags each request with a short id and logs it on completion.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.New().String()[:8]
		c.Set("request_id", requestID)

		c.Next()

		log.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("HTTP Request")
	}
}

// bearer rejects requests whose Authorization header does not carry secret.
// An empty secret leaves the group open when allowOpen is set and closed
// otherwise.
func bearer(secret string, allowOpen bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			if allowOpen {
				c.Next()
				return
			}
			fail(c, 503, "NOT_CONFIGURED", "endpoint secret is not configured")
			return
		}
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			fail(c, 401, "UNAUTHORIZED", "Unauthorized")
			return
		}
		c.Next()
	}
}

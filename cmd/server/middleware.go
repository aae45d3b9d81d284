package main

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	vexora "github.com/PeterKuehne/vexora-sub003"
)

// logMiddleware logs each request with method, path, status, duration,
// and remote address, over zerolog's chained builder.
func logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start).Round(time.Millisecond)).
			Str("remote", c.ClientIP()).
			Msg("request")
	}
}

// authMiddleware checks for a valid API key in the Authorization header.
// If apiKey is empty, authentication is disabled (development mode).
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != apiKey {
			writeError(c, vexora.KindUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// recoveryMiddleware catches panics, logs them via zerolog, and
// returns 500.
func recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.Error().
			Interface("error", recovered).
			Str("path", c.Request.URL.Path).
			Msg("panic recovered")
		writeError(c, vexora.KindInternal, "internal server error", nil)
		c.Abort()
	})
}

// corsMiddleware adds CORS headers. origins is a comma-separated list of
// allowed origins. If empty, CORS headers are not set.
func corsMiddleware(origins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origins == "" {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

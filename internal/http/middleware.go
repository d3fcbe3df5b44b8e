// Package http provides HTTP server implementation and request handlers.
package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CustomLoggerMiddleware logs each completed request.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", c.ClientIP()),
		)
	}
}

// RecoveryMiddleware recovers from panics in handlers, logs them, and
// returns a ServerError envelope instead of crashing the process.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					slog.Any("error", err),
					slog.String("path", c.Request.URL.Path),
					slog.String("method", c.Request.Method),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{"type": "ServerError"},
				})
			}
		}()
		c.Next()
	}
}

// APIKeyMiddleware enforces spec.md §6's gateway rule: every route except
// `/` and the password-reset HTML form requires a matching x-api-key
// header. Comparison is constant-time to avoid a timing oracle on the key.
func APIKeyMiddleware(apiKey string, logger *slog.Logger) gin.HandlerFunc {
	expected := []byte(apiKey)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("x-api-key"))
		if len(got) != len(expected) || subtle.ConstantTimeCompare(got, expected) != 1 {
			logger.Debug("rejected request with invalid x-api-key", slog.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"type": "TokenInvalid"},
			})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware throttles sign-in and password-reset-request traffic
// to RATE_LIMIT_PER_MINUTE (SPEC_FULL.md §6), keyed by client IP via a
// token-bucket limiter per key.
func RateLimitMiddleware(perMinute int, logger *slog.Logger) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
			limiters[key] = l
		}
		return l
	}

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			logger.Debug("rate limit exceeded", slog.String("client_ip", c.ClientIP()), slog.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"type": "ServerError"},
			})
			return
		}
		c.Next()
	}
}

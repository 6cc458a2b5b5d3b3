package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flowmetric/ingest-gateway/internal/auth"
	"github.com/flowmetric/ingest-gateway/internal/models"
	"github.com/flowmetric/ingest-gateway/internal/ratelimit"
)

const requestIDKey = "request_id"

// RequestID stamps every response with a correlation header, reusing the
// caller's value when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// CORS echoes the requesting origin and answers preflight for every route,
// health included.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// AddrRateLimit charges pre-authentication admission against the source
// address bucket.
func AddrRateLimit(limiter ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return rateLimitMiddleware(limiter, logger, ratelimit.ScopeAddr, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// KeyRateLimit charges authenticated requests against the credential bucket.
// It must run after the auth middleware.
func KeyRateLimit(limiter ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return rateLimitMiddleware(limiter, logger, ratelimit.ScopeKey, func(c *gin.Context) string {
		authCtx, _ := auth.FromContext(c)
		return authCtx.RateKey
	})
}

func rateLimitMiddleware(limiter ratelimit.Limiter, logger *slog.Logger, scope ratelimit.Scope, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}

		dec, err := limiter.Allow(c.Request.Context(), scope, key, 1)
		if err != nil {
			// A broken limiter backend fails open; shedding all traffic
			// because Redis restarted is worse than briefly not limiting.
			logger.Warn("rate limiter unavailable", "scope", string(scope), "error", err)
			c.Next()
			return
		}
		if !dec.Allowed {
			seconds := int64(math.Ceil(dec.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.FormatInt(seconds, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:        "rate limit exceeded",
				Code:         models.CodeRateLimited,
				RetryAfterMS: dec.RetryAfter.Milliseconds(),
			})
			return
		}

		c.Next()
	}
}

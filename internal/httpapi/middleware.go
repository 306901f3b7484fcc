package httpapi

import (
	"context"
	"net/http"
	"time"

	"notes-api/internal/graph"
	"notes-api/internal/metrics"
	"notes-api/pkg/logger"
	"notes-api/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// securityHeaders mirrors helmet's defaults.
var securityHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'self';base-uri 'self';font-src 'self' https: data:;form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';script-src 'self';script-src-attr 'none';style-src 'self' https: 'unsafe-inline';upgrade-insecure-requests"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Origin-Agent-Cluster", "?1"},
	{"Referrer-Policy", "no-referrer"},
	{"Strict-Transport-Security", "max-age=15552000; includeSubDomains"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-DNS-Prefetch-Control", "off"},
	{"X-Download-Options", "noopen"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"X-XSS-Protection", "0"},
}

// SecurityHeaders sets the hardening headers on every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		h.Del("X-Powered-By")
		c.Next()
	}
}

// CORS allows every origin.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:   []string{"X-Request-Id"},
		MaxAge:          12 * time.Hour,
	})
}

// ConcurrencyCap bounds in-flight requests per client IP. A nil cap
// disables it. Redis errors let the request through.
func ConcurrencyCap(limiter *utils.InflightCap) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		id := c.ClientIP()

		ok, err := limiter.Acquire(c.Request.Context(), id)
		if err != nil {
			logger.FromGin(c).Warn("concurrency cap unavailable", "err", err)
			c.Next()
			return
		}
		if !ok {
			metrics.ObserveGraphQL(start, metrics.OutcomeThrottled)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, graph.ErrorEnvelope(graph.CodeTooManyRequests, "too many requests in flight"))
			return
		}
		defer func() {
			if err := limiter.Release(context.WithoutCancel(c.Request.Context()), id); err != nil {
				logger.FromGin(c).Warn("concurrency cap release failed", "err", err)
			}
		}()
		c.Next()
	}
}

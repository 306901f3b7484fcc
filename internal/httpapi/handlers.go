package httpapi

import (
	"context"
	"net/http"

	"notes-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// HelloText is the body served on GET /.
const HelloText = "Hello Web Server!"

// Hello answers GET / regardless of headers or credentials.
func Hello(c *gin.Context) {
	c.String(http.StatusOK, HelloText)
}

// Health reports 200 while check succeeds and 503 otherwise.
func Health(check func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := check(c.Request.Context()); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

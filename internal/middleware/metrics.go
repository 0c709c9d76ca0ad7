package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muselane/studio-api/internal/service"
)

// Metrics records request counts and latency per route. Unmatched routes are
// observed under their raw path; the scrape endpoint itself is skipped so the
// collector does not count its own polls.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if route == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

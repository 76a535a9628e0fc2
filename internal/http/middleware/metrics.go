package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/personaforge-backend/internal/observability"
)

// Metrics records request counts and latency per route template. Unmatched
// paths share one label so scanners cannot inflate the series count, and the
// scrape endpoint is not measured.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/metrics" {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}
		start := time.Now()
		m.IncInflight()
		defer m.DecInflight()

		c.Next()
		m.ObserveAPI(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

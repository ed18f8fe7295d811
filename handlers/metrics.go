package handlers

import (
	"strconv"
	"time"

	"condolex-backend/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records the latency and status of every request by route
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

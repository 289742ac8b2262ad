package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uniedit/imagegen/internal/utils/metrics"
)

// Metrics returns a middleware that records request counts and latency.
// Requests are labelled by route template so IDs do not explode cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		m.HTTPRequestsInFlight.Inc()
		start := time.Now()

		c.Next()

		m.HTTPRequestsInFlight.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

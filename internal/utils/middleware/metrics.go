package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uniedit/mediaupload/internal/utils/metrics"
)

// Metrics records request counts, latencies and in-flight requests. Paths
// are labelled by route template so label cardinality stays bounded.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

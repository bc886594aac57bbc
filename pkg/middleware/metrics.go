package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/order-pipeline/pkg/metrics"
)

// Metrics записывает счётчик и latency каждого запроса в Prometheus.
// path берётся из шаблона маршрута, чтобы не раздувать кардинальность.
func Metrics(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RequestsTotal.WithLabelValues(
			service,
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		metrics.RequestDuration.WithLabelValues(
			service,
			c.Request.Method,
			path,
		).Observe(time.Since(start).Seconds())
	}
}

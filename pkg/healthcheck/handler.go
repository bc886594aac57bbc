package healthcheck

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthyResponse — ответ /health при доступной БД.
type HealthyResponse struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Database  string  `json:"database"`
	LatencyMS float64 `json:"latency_ms"`
	Timestamp string  `json:"timestamp"`
}

// UnhealthyResponse — ответ /health при недоступной БД.
type UnhealthyResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Database  string `json:"database"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Handler возвращает gin handler для GET /health.
// Замеряет latency ping'а БД; при ошибке отвечает 503.
func Handler(service string, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		start := time.Now()
		err := CheckMySQL(ctx, db)
		latency := time.Since(start)

		now := time.Now().UTC().Format(time.RFC3339)

		if err != nil {
			c.JSON(http.StatusServiceUnavailable, UnhealthyResponse{
				Status:    "unhealthy",
				Service:   service,
				Database:  "disconnected",
				Error:     err.Error(),
				Timestamp: now,
			})
			return
		}

		c.JSON(http.StatusOK, HealthyResponse{
			Status:    "healthy",
			Service:   service,
			Database:  "connected",
			LatencyMS: float64(latency.Microseconds()) / 1000.0,
			Timestamp: now,
		})
	}
}

package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"example.com/order-pipeline/pkg/healthcheck"
	"example.com/order-pipeline/pkg/middleware"
)

// NewRouter собирает gin роутер Orders Service.
func NewRouter(h *Handler, db *gorm.DB) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Tracing())
	router.Use(middleware.Metrics("orders"))

	router.GET("/health", healthcheck.Handler("orders", db))

	orders := router.Group("/orders")
	{
		orders.POST("", h.Create)
		orders.GET("/:id", h.Get)
		orders.POST("/:id/confirmation", h.Confirm)
		orders.POST("/:id/cancellation", h.Cancel)
	}

	return router
}

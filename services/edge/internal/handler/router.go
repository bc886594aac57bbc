package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"example.com/order-pipeline/pkg/healthcheck"
	"example.com/order-pipeline/pkg/middleware"
)

// NewRouter собирает gin роутер Edge API.
func NewRouter(h *Handler, db *gorm.DB) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Tracing())
	router.Use(middleware.Metrics("edge"))

	router.GET("/health", healthcheck.Handler("edge", db))

	orders := router.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("/:id", h.GetOrder)
	}

	return router
}

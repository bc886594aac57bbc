package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"example.com/order-pipeline/pkg/healthcheck"
	"example.com/order-pipeline/pkg/middleware"
)

// NewRouter собирает gin роутер Inventory Service.
func NewRouter(h *Handler, db *gorm.DB) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Tracing())
	router.Use(middleware.Metrics("inventory"))

	router.GET("/health", healthcheck.Handler("inventory", db))

	router.POST("/products", h.CreateProduct)
	router.GET("/products/:id/availability", h.GetAvailability)
	router.POST("/products/:id/stock", h.AddStock)

	router.POST("/reservations", h.Reserve)
	router.DELETE("/reservations/:order_id", h.Release)

	return router
}

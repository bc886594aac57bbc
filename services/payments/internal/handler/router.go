package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"example.com/order-pipeline/pkg/healthcheck"
	"example.com/order-pipeline/pkg/middleware"
)

// NewRouter собирает gin роутер Payments Service.
func NewRouter(h *Handler, db *gorm.DB) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Tracing())
	router.Use(middleware.Metrics("payments"))

	router.GET("/health", healthcheck.Handler("payments", db))

	payments := router.Group("/payments")
	{
		payments.POST("/authorize", h.Authorize)
		payments.POST("/capture/:id", h.Capture)
		payments.POST("/void/:id", h.Void)
	}

	return router
}

// Package handler содержит HTTP обработчики Inventory Service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/services/inventory/internal/domain"
	"example.com/order-pipeline/services/inventory/internal/service"
)

// Handler обрабатывает HTTP запросы к Inventory Service.
type Handler struct {
	svc *service.InventoryService
}

// NewHandler создаёт обработчик склада.
func NewHandler(svc *service.InventoryService) *Handler {
	return &Handler{svc: svc}
}

// createProductRequest — тело запроса POST /products.
type createProductRequest struct {
	SKU           string `json:"sku" binding:"required"`
	Name          string `json:"name" binding:"required"`
	StockQuantity int32  `json:"stock_quantity" binding:"gte=0"`
}

// reserveRequest — тело запроса POST /reservations.
type reserveRequest struct {
	OrderID string               `json:"order_id" binding:"required,uuid"`
	Items   []reserveItemRequest `json:"items" binding:"required,min=1,dive"`
}

type reserveItemRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int32  `json:"quantity" binding:"required,gt=0"`
}

// addStockRequest — тело запроса POST /products/:id/stock.
type addStockRequest struct {
	IdempotencyKey string  `json:"idempotency_key" binding:"required"`
	Quantity       int32   `json:"quantity" binding:"required"`
	Reason         string  `json:"reason" binding:"required"`
	ReferenceID    *string `json:"reference_id"`
	Notes          *string `json:"notes"`
}

// CreateProduct обрабатывает POST /products.
func (h *Handler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), service.CreateProductInput{
		SKU:           req.SKU,
		Name:          req.Name,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSKU) {
			c.JSON(http.StatusConflict, gin.H{"error": "sku_already_exists"})
			return
		}
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"product_id":     product.ID,
		"sku":            product.SKU,
		"name":           product.Name,
		"stock_quantity": product.StockQuantity,
	})
}

// GetAvailability обрабатывает GET /products/:id/availability.
func (h *Handler) GetAvailability(c *gin.Context) {
	product, err := h.svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product_not_found"})
			return
		}
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id":     product.ID,
		"sku":            product.SKU,
		"stock_quantity": product.StockQuantity,
	})
}

// Reserve обрабатывает POST /reservations.
// Повтор с тем же order_id тоже отвечает 201 с прежними reservation_ids.
func (h *Handler) Reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}

	items := make([]domain.ReservationItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.ReservationItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	result, err := h.svc.Reserve(c.Request.Context(), req.OrderID, items)
	if err != nil {
		if stock, ok := domain.AsInsufficientStock(err); ok {
			c.JSON(http.StatusConflict, gin.H{
				"error":       "insufficient_stock",
				"product_id":  stock.ProductID,
				"product_sku": stock.SKU,
				"requested":   stock.Requested,
				"available":   stock.Available,
			})
			return
		}
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product_not_found"})
			return
		}
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":                req.OrderID,
		"reservation_ids":         result.ReservationIDs,
		"line_items_reserved":     result.LineItemsReserved,
		"total_quantity_reserved": result.TotalQuantityReserved,
	})
}

// Release обрабатывает DELETE /reservations/:order_id.
// Всегда 200: снятие несуществующих резерваций — успех.
func (h *Handler) Release(c *gin.Context) {
	if err := h.svc.Release(c.Request.Context(), c.Param("order_id")); err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("order_id"), "status": "released"})
}

// AddStock обрабатывает POST /products/:id/stock.
func (h *Handler) AddStock(c *gin.Context) {
	var req addStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}

	adjustment, existed, err := h.svc.AddStock(c.Request.Context(), service.AddStockInput{
		ProductID:      c.Param("id"),
		IdempotencyKey: req.IdempotencyKey,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		ReferenceID:    req.ReferenceID,
		Notes:          req.Notes,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product_not_found"})
			return
		}
		if stock, ok := domain.AsInsufficientStock(err); ok {
			c.JSON(http.StatusConflict, gin.H{
				"error":       "insufficient_stock",
				"product_id":  stock.ProductID,
				"product_sku": stock.SKU,
				"requested":   stock.Requested,
				"available":   stock.Available,
			})
			return
		}
		h.internalError(c, err)
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"adjustment_id":     adjustment.ID,
		"product_id":        adjustment.ProductID,
		"quantity_change":   adjustment.QuantityChange,
		"previous_quantity": adjustment.PreviousQuantity,
		"new_quantity":      adjustment.NewQuantity,
		"already_exists":    existed,
	})
}

func (h *Handler) validationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation_failed",
		"message": err.Error(),
	})
}

func (h *Handler) internalError(c *gin.Context, err error) {
	lg := logger.FromContext(c.Request.Context())
	lg.Error().Err(err).Msg("Внутренняя ошибка сервиса склада")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

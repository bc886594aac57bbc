// Package handler содержит HTTP обработчики Orders Service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/services/orders/internal/domain"
	"example.com/order-pipeline/services/orders/internal/service"
)

// Handler обрабатывает HTTP запросы к Orders Service.
type Handler struct {
	svc *service.OrderService
}

// NewHandler создаёт обработчик заказов.
func NewHandler(svc *service.OrderService) *Handler {
	return &Handler{svc: svc}
}

// createOrderRequest — тело запроса POST /orders.
type createOrderRequest struct {
	OrderLedgerID    string             `json:"order_ledger_id" binding:"required,uuid"`
	UserID           string             `json:"user_id" binding:"required,uuid"`
	TotalAmountCents int64              `json:"total_amount_cents" binding:"required,gt=0"`
	Currency         string             `json:"currency" binding:"required,len=3"`
	Items            []orderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type orderItemRequest struct {
	ProductID      string `json:"product_id" binding:"required,uuid"`
	Quantity       int32  `json:"quantity" binding:"required,gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" binding:"gte=0"`
}

// orderResponse — представление заказа в ответах API.
type orderResponse struct {
	OrderID          string              `json:"order_id"`
	OrderLedgerID    string              `json:"order_ledger_id"`
	UserID           string              `json:"user_id"`
	Status           string              `json:"status"`
	TotalAmountCents int64               `json:"total_amount_cents"`
	Currency         string              `json:"currency"`
	Items            []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ProductID      string `json:"product_id"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func toResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:          o.ID,
		OrderLedgerID:    o.OrderLedgerID,
		UserID:           o.UserID,
		Status:           string(o.Status),
		TotalAmountCents: o.TotalAmountCents,
		Currency:         o.Currency,
		Items:            make([]orderItemResponse, len(o.Items)),
	}
	for i, item := range o.Items {
		resp.Items[i] = orderItemResponse{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return resp
}

// Create обрабатывает POST /orders.
// Повтор с тем же order_ledger_id отвечает 200 с существующим заказом.
func (h *Handler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
		})
		return
	}

	items := make([]service.CreateOrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CreateOrderItem{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}

	order, existed, err := h.svc.Create(c.Request.Context(), service.CreateOrderInput{
		OrderLedgerID:    req.OrderLedgerID,
		UserID:           req.UserID,
		TotalAmountCents: req.TotalAmountCents,
		Currency:         req.Currency,
		Items:            items,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	c.JSON(status, toResponse(order))
}

// Get обрабатывает GET /orders/:id.
func (h *Handler) Get(c *gin.Context) {
	order, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(order))
}

// Confirm обрабатывает POST /orders/:id/confirmation.
func (h *Handler) Confirm(c *gin.Context) {
	order, err := h.svc.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(order))
}

// Cancel обрабатывает POST /orders/:id/cancellation.
func (h *Handler) Cancel(c *gin.Context) {
	order, err := h.svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(order))
}

// renderError транслирует доменные ошибки в HTTP статусы.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
	case errors.Is(err, domain.ErrInvalidOrderStatus):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_order_status"})
	default:
		lg := logger.FromContext(c.Request.Context())
		lg.Error().Err(err).Msg("Внутренняя ошибка сервиса заказов")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

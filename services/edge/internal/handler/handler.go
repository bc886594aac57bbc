// Package handler содержит HTTP обработчики Edge API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/services/edge/internal/client"
	"example.com/order-pipeline/services/edge/internal/service"
)

// HeaderIdempotencyKey — заголовок идемпотентного ключа клиента.
const HeaderIdempotencyKey = "Idempotency-Key"

// Handler обрабатывает HTTP запросы Edge API.
type Handler struct {
	svc *service.OrderService
}

// NewHandler создаёт обработчик Edge API.
func NewHandler(svc *service.OrderService) *Handler {
	return &Handler{svc: svc}
}

// createOrderRequest — тело запроса POST /orders.
type createOrderRequest struct {
	UserID   string             `json:"user_id" binding:"required,uuid"`
	Email    string             `json:"email" binding:"required,email,max=255"`
	Currency string             `json:"currency" binding:"omitempty,len=3"`
	Items    []orderItemRequest `json:"items" binding:"required,min=1,max=50,dive"`
	Payment  paymentRequest     `json:"payment" binding:"required"`
}

type orderItemRequest struct {
	ProductID      string `json:"product_id" binding:"required,uuid"`
	Quantity       int32  `json:"quantity" binding:"required,gte=1,lte=100"`
	UnitPriceCents int64  `json:"unit_price_cents" binding:"gte=0"`
}

type paymentRequest struct {
	Method string `json:"method" binding:"required,eq=card"`
	Token  string `json:"token" binding:"required"`
}

// orderItemResponse — позиция заказа в ответах API.
type orderItemResponse struct {
	ProductID      string `json:"product_id"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// CreateOrder обрабатывает POST /orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_idempotency_key",
			"message": "Заголовок Idempotency-Key обязателен",
		})
		return
	}

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

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	entry, err := h.svc.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		ClientRequestID: key,
		UserID:          req.UserID,
		Email:           req.Email,
		Currency:        currency,
		PaymentToken:    req.Payment.Token,
		Items:           items,
	})

	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{
			"order_ledger_id": entry.ID,
			"status":          string(entry.Status),
			"message":         "Заказ принят в обработку",
		})

	case errors.Is(err, service.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, gin.H{
			"error":           "duplicate_request",
			"order_ledger_id": entry.ID,
			"status":          string(entry.Status),
		})

	default:
		h.renderError(c, err)
	}
}

// GetOrder обрабатывает GET /orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_id",
			"message": "order_ledger_id должен быть UUID",
		})
		return
	}

	entry, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		h.renderError(c, err)
		return
	}

	items := make([]orderItemResponse, len(entry.Items))
	for i, item := range entry.Items {
		items[i] = orderItemResponse{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}

	resp := gin.H{
		"order_ledger_id":    entry.ID,
		"client_request_id":  entry.ClientRequestID,
		"status":             string(entry.Status),
		"user_id":            entry.UserID,
		"email":              entry.Email,
		"total_amount_cents": entry.TotalAmountCents,
		"currency":           entry.Currency,
		"created_at":         entry.CreatedAt,
		"updated_at":         entry.UpdatedAt,
		"items":              items,
	}
	if entry.PaymentAuthorizationID != nil {
		resp["payment_authorization_id"] = *entry.PaymentAuthorizationID
	}
	c.JSON(http.StatusOK, resp)
}

// renderError транслирует ошибки клиента платежей в HTTP статусы.
func (h *Handler) renderError(c *gin.Context, err error) {
	var declined *client.DeclinedError
	if errors.As(err, &declined) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":        "payment_declined",
			"decline_code": declined.Code,
			"message":      declined.Message,
			"is_retryable": false,
		})
		return
	}

	if errors.Is(err, client.ErrGateway) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":        "gateway_error",
			"message":      "Платёжный шлюз временно недоступен, повторите запрос",
			"is_retryable": true,
		})
		return
	}

	if errors.Is(err, ledger.ErrDuplicateRequest) {
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_request"})
		return
	}

	lg := logger.FromContext(c.Request.Context())
	lg.Error().Err(err).Msg("Внутренняя ошибка Edge API")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

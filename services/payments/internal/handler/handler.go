// Package handler содержит HTTP обработчики Payments Service.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/services/payments/internal/domain"
	"example.com/order-pipeline/services/payments/internal/service"
)

// Handler обрабатывает HTTP запросы к Payments Service.
type Handler struct {
	svc *service.PaymentService
}

// NewHandler создаёт обработчик платежей.
func NewHandler(svc *service.PaymentService) *Handler {
	return &Handler{svc: svc}
}

// authorizeRequest — тело запроса POST /payments/authorize.
type authorizeRequest struct {
	UserID         string `json:"user_id" binding:"required,uuid"`
	AmountCents    int64  `json:"amount_cents" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
	PaymentToken   string `json:"payment_token" binding:"required"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

// mutateRequest — тело запроса capture/void.
type mutateRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

// authorizationResponse — представление авторизации в ответах API.
type authorizationResponse struct {
	AuthorizationID string `json:"authorization_id"`
	UserID          string `json:"user_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

func toResponse(a *domain.Authorization) authorizationResponse {
	return authorizationResponse{
		AuthorizationID: a.ID,
		UserID:          a.UserID,
		AmountCents:     a.AmountCents,
		Currency:        a.Currency,
		Status:          string(a.Status),
	}
}

// Authorize обрабатывает POST /payments/authorize.
func (h *Handler) Authorize(c *gin.Context) {
	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
		})
		return
	}

	auth, err := h.svc.Authorize(c.Request.Context(), service.AuthorizeInput{
		UserID:         req.UserID,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		PaymentToken:   req.PaymentToken,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(auth))
}

// Capture обрабатывает POST /payments/capture/:id.
func (h *Handler) Capture(c *gin.Context) {
	h.mutate(c, h.svc.Capture)
}

// Void обрабатывает POST /payments/void/:id.
func (h *Handler) Void(c *gin.Context) {
	h.mutate(c, h.svc.Void)
}

// mutate — общий путь capture/void: парсинг тела, вызов сервиса, рендер.
func (h *Handler) mutate(c *gin.Context, op func(ctx context.Context, id, key string) (*domain.Authorization, error)) {
	var req mutateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
		})
		return
	}

	auth, err := op(c.Request.Context(), c.Param("id"), req.IdempotencyKey)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(auth))
}

// renderError транслирует доменные ошибки в HTTP статусы.
func (h *Handler) renderError(c *gin.Context, err error) {
	if declined, ok := domain.AsDeclined(err); ok {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":        "payment_declined",
			"decline_code": declined.Code,
			"message":      declined.Message,
			"is_retryable": false,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrAuthorizationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "authorization_not_found"})
	case errors.Is(err, domain.ErrAlreadyCaptured):
		c.JSON(http.StatusConflict, gin.H{"error": "already_captured"})
	case errors.Is(err, domain.ErrAlreadyVoided):
		c.JSON(http.StatusConflict, gin.H{"error": "already_voided"})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":        "gateway_unavailable",
			"is_retryable": true,
		})
	default:
		lg := logger.FromContext(c.Request.Context())
		lg.Error().Err(err).Msg("Внутренняя ошибка платёжного сервиса")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

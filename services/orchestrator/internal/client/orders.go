package client

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// CreateOrderRequest — параметры создания заказа.
type CreateOrderRequest struct {
	OrderLedgerID    string            `json:"order_ledger_id"`
	UserID           string            `json:"user_id"`
	TotalAmountCents int64             `json:"total_amount_cents"`
	Currency         string            `json:"currency"`
	Items            []CreateOrderItem `json:"items"`
}

// CreateOrderItem — позиция заказа.
type CreateOrderItem struct {
	ProductID      string `json:"product_id"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// createOrderResponse — ответ Orders Service.
type createOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// OrdersClient — клиент Orders Service.
type OrdersClient struct {
	http *httpClient
}

// NewOrdersClient создаёт клиент заказов.
func NewOrdersClient(baseURL string, timeout time.Duration) *OrdersClient {
	return &OrdersClient{http: newHTTPClient("orders", baseURL, timeout)}
}

// CreateOrder создаёт заказ. Идемпотентна на стороне сервиса по
// order_ledger_id: повтор возвращает существующий заказ.
func (c *OrdersClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error) {
	var resp createOrderResponse
	if err := c.http.do(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return "", err
	}
	return resp.OrderID, nil
}

// ConfirmOrder подтверждает заказ. Повторное подтверждение — успех.
func (c *OrdersClient) ConfirmOrder(ctx context.Context, orderID string) error {
	return c.http.do(ctx, http.MethodPost, "/orders/"+orderID+"/confirmation", nil, nil)
}

// CancelOrder отменяет заказ. Отмена уже отменённого — успех;
// отмена подтверждённого — invalid_order_status (не retryable).
func (c *OrdersClient) CancelOrder(ctx context.Context, orderID string) error {
	return c.http.do(ctx, http.MethodPost, "/orders/"+orderID+"/cancellation", nil, nil)
}

// IsInvalidOrderStatus проверяет ошибку запрещённого перехода статуса.
func IsInvalidOrderStatus(err error) bool {
	var de *DownstreamError
	return errors.As(err, &de) && de.Code == "invalid_order_status"
}

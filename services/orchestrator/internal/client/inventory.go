package client

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ReserveItem — строка запроса резервирования.
type ReserveItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// reserveRequest — тело запроса POST /reservations.
type reserveRequest struct {
	OrderID string        `json:"order_id"`
	Items   []ReserveItem `json:"items"`
}

// InventoryClient — клиент Inventory Service.
type InventoryClient struct {
	http *httpClient
}

// NewInventoryClient создаёт клиент склада.
func NewInventoryClient(baseURL string, timeout time.Duration) *InventoryClient {
	return &InventoryClient{http: newHTTPClient("inventory", baseURL, timeout)}
}

// Reserve резервирует остаток под заказ. Повтор с тем же order_id
// возвращает прежние резервации — для саги это успех.
func (c *InventoryClient) Reserve(ctx context.Context, orderID string, items []ReserveItem) error {
	return c.http.do(ctx, http.MethodPost, "/reservations",
		reserveRequest{OrderID: orderID, Items: items}, nil)
}

// Release снимает резервации заказа. Отсутствие резерваций — успех.
func (c *InventoryClient) Release(ctx context.Context, orderID string) error {
	return c.http.do(ctx, http.MethodDelete, "/reservations/"+orderID, nil, nil)
}

// IsInsufficientStock проверяет ошибку нехватки остатка (не retryable).
func IsInsufficientStock(err error) bool {
	var de *DownstreamError
	return errors.As(err, &de) && de.Code == "insufficient_stock"
}

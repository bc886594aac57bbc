package client

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// mutateRequest — тело запроса capture/void.
type mutateRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// PaymentsClient — клиент Payments Service.
type PaymentsClient struct {
	http *httpClient
}

// NewPaymentsClient создаёт клиент платежей.
func NewPaymentsClient(baseURL string, timeout time.Duration) *PaymentsClient {
	return &PaymentsClient{http: newHTTPClient("payments", baseURL, timeout)}
}

// Capture списывает авторизованный платёж. Повтор с тем же ключом
// схлопывается на стороне сервиса.
func (c *PaymentsClient) Capture(ctx context.Context, authorizationID, idempotencyKey string) error {
	return c.http.do(ctx, http.MethodPost, "/payments/capture/"+authorizationID,
		mutateRequest{IdempotencyKey: idempotencyKey}, nil)
}

// Void отменяет авторизацию.
func (c *PaymentsClient) Void(ctx context.Context, authorizationID, idempotencyKey string) error {
	return c.http.do(ctx, http.MethodPost, "/payments/void/"+authorizationID,
		mutateRequest{IdempotencyKey: idempotencyKey}, nil)
}

// IsAlreadyCaptured проверяет ошибку «платёж уже списан».
func IsAlreadyCaptured(err error) bool {
	var de *DownstreamError
	return errors.As(err, &de) && de.Code == "already_captured"
}

// IsAlreadyVoided проверяет ошибку «авторизация уже отменена».
func IsAlreadyVoided(err error) bool {
	var de *DownstreamError
	return errors.As(err, &de) && de.Code == "already_voided"
}

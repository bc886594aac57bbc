// Package client содержит HTTP клиент Payments Service для Edge API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"example.com/order-pipeline/pkg/circuitbreaker"
)

// ErrGateway — платёжный шлюз или сервис платежей недоступен. Retryable.
var ErrGateway = errors.New("сервис платежей недоступен")

// DeclinedError — платёж отклонён. Не retryable.
type DeclinedError struct {
	Code    string
	Message string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("платёж отклонён: %s", e.Code)
}

// AuthorizeRequest — параметры авторизации платежа.
type AuthorizeRequest struct {
	UserID         string `json:"user_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	PaymentToken   string `json:"payment_token"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AuthorizeResponse — результат авторизации.
type AuthorizeResponse struct {
	AuthorizationID string `json:"authorization_id"`
	Status          string `json:"status"`
}

// declineBody — тело ответа 402 от Payments Service.
type declineBody struct {
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

// PaymentsClient — HTTP клиент Payments Service за circuit breaker.
type PaymentsClient struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

// NewPaymentsClient создаёт клиент платежей.
func NewPaymentsClient(baseURL string, timeout time.Duration) *PaymentsClient {
	return &PaymentsClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New("payments"),
	}
}

// Authorize вызывает POST /payments/authorize.
// Транспортные сбои и 5xx считаются отказами breaker; отклонение платежа —
// бизнес-результат, breaker его не учитывает.
func (c *PaymentsClient) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
	var resp *AuthorizeResponse

	err := c.breaker.Execute(func() error {
		var callErr error
		resp, callErr = c.doAuthorize(ctx, req)
		return callErr
	}, func(err error) bool {
		return errors.Is(err, ErrGateway)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, ErrGateway
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *PaymentsClient) doAuthorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/payments/authorize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK:
		var out AuthorizeResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, err
		}
		return &out, nil

	case httpResp.StatusCode == http.StatusPaymentRequired:
		var decline declineBody
		if err := json.Unmarshal(respBody, &decline); err != nil {
			return nil, err
		}
		return nil, &DeclinedError{Code: decline.DeclineCode, Message: decline.Message}

	case httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: статус %d", ErrGateway, httpResp.StatusCode)

	default:
		return nil, fmt.Errorf("неожиданный ответ сервиса платежей: %d", httpResp.StatusCode)
	}
}

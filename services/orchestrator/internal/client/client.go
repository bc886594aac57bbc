// Package client содержит HTTP клиенты downstream-сервисов саги.
// Клиенты переводят коды ответов в единую таксономию ошибок:
// транспортные сбои и 5xx — retryable, бизнес-ошибки 4xx — нет.
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

// DownstreamError — ошибка вызова downstream-сервиса.
type DownstreamError struct {
	Service   string // Имя сервиса (orders, inventory, payments)
	Code      string // Машиночитаемый код из тела ответа
	Status    int    // HTTP статус (0 для транспортных сбоев)
	Message   string
	Retryable bool
}

func (e *DownstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: ошибка соединения: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Service, e.Status, e.Code)
}

// IsRetryable возвращает true для ошибок, допускающих повтор шага саги.
func IsRetryable(err error) bool {
	var de *DownstreamError
	if errors.As(err, &de) {
		return de.Retryable
	}
	// Неизвестная ошибка: считаем транспортной, повторяем.
	return true
}

// errorBody — стандартное тело ошибки downstream-сервисов.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// httpClient — общий низкоуровневый клиент с breaker.
type httpClient struct {
	service string
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

func newHTTPClient(service, baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{
		service: service,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(service),
	}
}

// do выполняет запрос через breaker и декодирует ответ в out (если не nil).
// Ошибки 2xx-диапазона нет; не-2xx переводится в DownstreamError.
func (c *httpClient) do(ctx context.Context, method, path string, payload, out any) error {
	err := c.breaker.Execute(func() error {
		return c.doOnce(ctx, method, path, payload, out)
	}, func(err error) bool {
		return IsRetryable(err)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return &DownstreamError{
			Service:   c.service,
			Code:      "circuit_open",
			Message:   "circuit breaker открыт",
			Retryable: true,
		}
	}
	return err
}

func (c *httpClient) doOnce(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &DownstreamError{
			Service:   c.service,
			Code:      "connection_error",
			Message:   err.Error(),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DownstreamError{
			Service:   c.service,
			Code:      "read_error",
			Message:   err.Error(),
			Retryable: true,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("%s: ошибка декодирования ответа: %w", c.service, err)
			}
		}
		return nil
	}

	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	return &DownstreamError{
		Service:   c.service,
		Code:      eb.Error,
		Status:    resp.StatusCode,
		Message:   eb.Message,
		Retryable: resp.StatusCode >= 500,
	}
}

// Package client содержит тесты HTTP клиентов downstream-сервисов.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOrdersClient тестирует клиент Orders Service.
func TestOrdersClient(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateOrder возвращает order_id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/orders", r.URL.Path)

			var req CreateOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ledger-1", req.OrderLedgerID)

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"order_id": "order-1", "status": "CREATED"})
		}))
		defer srv.Close()

		c := NewOrdersClient(srv.URL, time.Second)
		orderID, err := c.CreateOrder(ctx, CreateOrderRequest{OrderLedgerID: "ledger-1"})
		require.NoError(t, err)
		assert.Equal(t, "order-1", orderID)
	})

	t.Run("5xx — retryable DownstreamError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": "internal_error"})
		}))
		defer srv.Close()

		c := NewOrdersClient(srv.URL, time.Second)
		_, err := c.CreateOrder(ctx, CreateOrderRequest{OrderLedgerID: "ledger-1"})

		var de *DownstreamError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "orders", de.Service)
		assert.Equal(t, http.StatusServiceUnavailable, de.Status)
		assert.True(t, de.Retryable)
		assert.True(t, IsRetryable(err))
	})

	t.Run("invalid_order_status — постоянная ошибка", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/orders/order-1/cancellation", r.URL.Path)
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_order_status"})
		}))
		defer srv.Close()

		c := NewOrdersClient(srv.URL, time.Second)
		err := c.CancelOrder(ctx, "order-1")

		assert.True(t, IsInvalidOrderStatus(err))
		assert.False(t, IsRetryable(err))
	})

	t.Run("транспортный сбой — connection_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // сервер уже недоступен

		c := NewOrdersClient(srv.URL, time.Second)
		err := c.ConfirmOrder(ctx, "order-1")

		var de *DownstreamError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "connection_error", de.Code)
		assert.Equal(t, 0, de.Status)
		assert.True(t, de.Retryable)
	})
}

// TestInventoryClient тестирует клиент Inventory Service.
func TestInventoryClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Reserve успешен", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/reservations", r.URL.Path)

			var req reserveRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "order-1", req.OrderID)
			assert.Len(t, req.Items, 1)

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"reservation_ids": []string{"res-1"}})
		}))
		defer srv.Close()

		c := NewInventoryClient(srv.URL, time.Second)
		err := c.Reserve(ctx, "order-1", []ReserveItem{{ProductID: "product-1", Quantity: 2}})
		assert.NoError(t, err)
	})

	t.Run("insufficient_stock — постоянная ошибка", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "insufficient_stock"})
		}))
		defer srv.Close()

		c := NewInventoryClient(srv.URL, time.Second)
		err := c.Reserve(ctx, "order-1", []ReserveItem{{ProductID: "product-1", Quantity: 99}})

		assert.True(t, IsInsufficientStock(err))
		assert.False(t, IsRetryable(err))
	})

	t.Run("Release идёт DELETE запросом", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			require.Equal(t, "/reservations/order-1", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"status": "released"})
		}))
		defer srv.Close()

		c := NewInventoryClient(srv.URL, time.Second)
		assert.NoError(t, c.Release(ctx, "order-1"))
	})
}

// TestPaymentsClient тестирует клиент Payments Service.
func TestPaymentsClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Capture передаёт идемпотентный ключ", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/payments/capture/auth-1", r.URL.Path)

			var req mutateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "capture-ledger-1", req.IdempotencyKey)

			json.NewEncoder(w).Encode(map[string]string{"status": "CAPTURED"})
		}))
		defer srv.Close()

		c := NewPaymentsClient(srv.URL, time.Second)
		assert.NoError(t, c.Capture(ctx, "auth-1", "capture-ledger-1"))
	})

	t.Run("already_captured распознаётся", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "already_captured"})
		}))
		defer srv.Close()

		c := NewPaymentsClient(srv.URL, time.Second)
		err := c.Capture(ctx, "auth-1", "capture-ledger-1")
		assert.True(t, IsAlreadyCaptured(err))
		assert.False(t, IsAlreadyVoided(err))
	})

	t.Run("already_voided распознаётся", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "already_voided"})
		}))
		defer srv.Close()

		c := NewPaymentsClient(srv.URL, time.Second)
		err := c.Void(ctx, "auth-1", "void-ledger-1")
		assert.True(t, IsAlreadyVoided(err))
	})
}

// TestIsRetryable тестирует таксономию ошибок.
func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&DownstreamError{Code: "connection_error", Retryable: true}))
	assert.False(t, IsRetryable(&DownstreamError{Code: "insufficient_stock", Status: 409}))
	// Неизвестные ошибки считаются транспортными.
	assert.True(t, IsRetryable(errors.New("boom")))
}

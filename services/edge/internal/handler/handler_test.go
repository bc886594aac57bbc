// Package handler содержит HTTP тесты Edge API.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/pkg/outbox"
	"example.com/order-pipeline/services/edge/internal/client"
	"example.com/order-pipeline/services/edge/internal/service"
)

// memoryLedgerRepository — in-memory реализация ledger.Repository для HTTP тестов.
type memoryLedgerRepository struct {
	mu     sync.Mutex
	byID   map[string]*ledger.OrderLedger
	byKey  map[string]*ledger.OrderLedger
	events []*outbox.Event
}

func newMemoryLedgerRepository() *memoryLedgerRepository {
	return &memoryLedgerRepository{
		byID:  make(map[string]*ledger.OrderLedger),
		byKey: make(map[string]*ledger.OrderLedger),
	}
}

func (r *memoryLedgerRepository) GetByID(_ context.Context, id string) (*ledger.OrderLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.byID[id]; ok {
		clone := *l
		return &clone, nil
	}
	return nil, ledger.ErrNotFound
}

func (r *memoryLedgerRepository) GetByClientRequestID(_ context.Context, clientRequestID string) (*ledger.OrderLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.byKey[clientRequestID]; ok {
		clone := *l
		return &clone, nil
	}
	return nil, ledger.ErrNotFound
}

func (r *memoryLedgerRepository) CreateWithOutbox(_ context.Context, l *ledger.OrderLedger, event *outbox.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[l.ClientRequestID]; ok {
		return ledger.ErrDuplicateRequest
	}
	clone := *l
	r.byID[l.ID] = &clone
	r.byKey[l.ClientRequestID] = &clone
	if event != nil {
		r.events = append(r.events, event)
	}
	return nil
}

func (r *memoryLedgerRepository) UpdateStatus(_ context.Context, _ string, _, _ ledger.Status, _ *string) error {
	return nil
}

func (r *memoryLedgerRepository) MarkFailed(_ context.Context, _ string, _ ledger.Status, _ string) error {
	return nil
}

func (r *memoryLedgerRepository) ScheduleRetry(_ context.Context, _ string, _ time.Time) error {
	return nil
}

// stubGateway — подменный клиент платежей.
type stubGateway struct {
	authorize func(req client.AuthorizeRequest) (*client.AuthorizeResponse, error)
}

func (g *stubGateway) Authorize(_ context.Context, req client.AuthorizeRequest) (*client.AuthorizeResponse, error) {
	return g.authorize(req)
}

// noopNotifier — уведомитель без эффекта.
type noopNotifier struct{}

func (noopNotifier) Publish(context.Context) {}

func approveAll(req client.AuthorizeRequest) (*client.AuthorizeResponse, error) {
	return &client.AuthorizeResponse{AuthorizationID: uuid.New().String(), Status: "AUTHORIZED"}, nil
}

func setupRouter(authorize func(client.AuthorizeRequest) (*client.AuthorizeResponse, error)) (*gin.Engine, *memoryLedgerRepository) {
	gin.SetMode(gin.TestMode)

	repo := newMemoryLedgerRepository()
	svc := service.NewOrderService(repo, &stubGateway{authorize: authorize}, noopNotifier{})
	h := NewHandler(svc)

	router := gin.New()
	router.POST("/orders", h.CreateOrder)
	router.GET("/orders/:id", h.GetOrder)
	return router, repo
}

func orderBody() map[string]any {
	return map[string]any{
		"user_id": uuid.New().String(),
		"email":   "user@example.com",
		"items": []map[string]any{
			{"product_id": uuid.New().String(), "quantity": 2, "unit_price_cents": 1500},
		},
		"payment": map[string]any{"method": "card", "token": "tok_ok"},
	}
}

func doCreate(t *testing.T, router *gin.Engine, key string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// TestHandler_CreateOrder тестирует POST /orders.
func TestHandler_CreateOrder(t *testing.T) {
	t.Run("успех — 202 с order_ledger_id", func(t *testing.T) {
		router, repo := setupRouter(approveAll)
		w := doCreate(t, router, uuid.New().String(), orderBody())

		require.Equal(t, http.StatusAccepted, w.Code)
		resp := decode(t, w)
		assert.NotEmpty(t, resp["order_ledger_id"])
		assert.Equal(t, "AUTHORIZED", resp["status"])
		assert.Len(t, repo.events, 1)
	})

	t.Run("без Idempotency-Key — 400", func(t *testing.T) {
		router, _ := setupRouter(approveAll)
		w := doCreate(t, router, "", orderBody())

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing_idempotency_key", decode(t, w)["error"])
	})

	t.Run("повторный ключ — 409 с той же записью", func(t *testing.T) {
		router, _ := setupRouter(approveAll)
		key := uuid.New().String()
		body := orderBody()

		w1 := doCreate(t, router, key, body)
		w2 := doCreate(t, router, key, body)

		require.Equal(t, http.StatusAccepted, w1.Code)
		require.Equal(t, http.StatusConflict, w2.Code)

		r1, r2 := decode(t, w1), decode(t, w2)
		assert.Equal(t, "duplicate_request", r2["error"])
		assert.Equal(t, r1["order_ledger_id"], r2["order_ledger_id"])
	})

	t.Run("отклонение платежа — 402", func(t *testing.T) {
		router, repo := setupRouter(func(client.AuthorizeRequest) (*client.AuthorizeResponse, error) {
			return nil, &client.DeclinedError{Code: "insufficient_funds", Message: "Недостаточно средств"}
		})
		w := doCreate(t, router, uuid.New().String(), orderBody())

		require.Equal(t, http.StatusPaymentRequired, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "payment_declined", resp["error"])
		assert.Equal(t, "insufficient_funds", resp["decline_code"])
		assert.Equal(t, false, resp["is_retryable"])
		// Аудит отклонения без outbox события.
		assert.Empty(t, repo.events)
	})

	t.Run("шлюз недоступен — 503 без записи", func(t *testing.T) {
		router, repo := setupRouter(func(client.AuthorizeRequest) (*client.AuthorizeResponse, error) {
			return nil, client.ErrGateway
		})
		w := doCreate(t, router, uuid.New().String(), orderBody())

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decode(t, w)
		assert.Equal(t, true, resp["is_retryable"])
		assert.Empty(t, repo.byID)
	})

	t.Run("валидация — 400", func(t *testing.T) {
		router, _ := setupRouter(approveAll)
		body := orderBody()
		body["email"] = "не email"
		w := doCreate(t, router, uuid.New().String(), body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("бесплатная позиция — 202", func(t *testing.T) {
		router, _ := setupRouter(approveAll)
		body := orderBody()
		body["items"] = []map[string]any{
			{"product_id": uuid.New().String(), "quantity": 1, "unit_price_cents": 0},
		}
		w := doCreate(t, router, uuid.New().String(), body)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("отрицательная цена — 400", func(t *testing.T) {
		router, _ := setupRouter(approveAll)
		body := orderBody()
		body["items"] = []map[string]any{
			{"product_id": uuid.New().String(), "quantity": 1, "unit_price_cents": -100},
		}
		w := doCreate(t, router, uuid.New().String(), body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("не card метод — 400", func(t *testing.T) {
		router, _ := setupRouter(approveAll)
		body := orderBody()
		body["payment"] = map[string]any{"method": "cash", "token": "tok_ok"}
		w := doCreate(t, router, uuid.New().String(), body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestHandler_GetOrder тестирует GET /orders/:id.
func TestHandler_GetOrder(t *testing.T) {
	t.Run("найдено — полный ответ", func(t *testing.T) {
		router, _ := setupRouter(approveAll)
		created := decode(t, doCreate(t, router, uuid.New().String(), orderBody()))
		id := created["order_ledger_id"].(string)

		req := httptest.NewRequest(http.MethodGet, "/orders/"+id, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Equal(t, id, resp["order_ledger_id"])
		assert.Equal(t, "AUTHORIZED", resp["status"])
		assert.NotEmpty(t, resp["payment_authorization_id"])
		assert.EqualValues(t, 3000, resp["total_amount_cents"])
	})

	t.Run("не UUID — 400", func(t *testing.T) {
		router, _ := setupRouter(approveAll)
		req := httptest.NewRequest(http.MethodGet, "/orders/abc", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("неизвестный — 404", func(t *testing.T) {
		router, _ := setupRouter(approveAll)
		req := httptest.NewRequest(http.MethodGet, "/orders/"+uuid.New().String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

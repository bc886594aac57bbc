// Package handler содержит HTTP тесты Inventory Service.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"example.com/order-pipeline/services/inventory/internal/domain"
	"example.com/order-pipeline/services/inventory/internal/service"
)

// memoryRepository — in-memory реализация репозитория склада для HTTP тестов.
// Повторяет транзакционную семантику: всё или ничего, идемпотентные повторы.
type memoryRepository struct {
	mu           sync.Mutex
	products     map[string]*domain.Product
	reservations map[string][]*domain.Reservation // по order_id
	adjustments  map[string]*domain.StockAdjustment
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		products:     make(map[string]*domain.Product),
		reservations: make(map[string][]*domain.Reservation),
		adjustments:  make(map[string]*domain.StockAdjustment),
	}
}

func (r *memoryRepository) CreateProduct(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.products {
		if existing.SKU == p.SKU {
			return domain.ErrDuplicateSKU
		}
	}
	clone := *p
	r.products[p.ID] = &clone
	return nil
}

func (r *memoryRepository) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memoryRepository) ReserveStock(_ context.Context, orderID string, items []domain.ReservationItem) (*domain.ReserveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &domain.ReserveResult{}
	var active []*domain.Reservation
	for _, res := range r.reservations[orderID] {
		if res.Status == domain.ReservationStatusReserved {
			active = append(active, res)
		}
	}
	if len(active) > 0 {
		result.AlreadyReserved = true
		result.LineItemsReserved = len(active)
		for _, res := range active {
			result.ReservationIDs = append(result.ReservationIDs, res.ID)
			result.TotalQuantityReserved += res.Quantity
		}
		return result, nil
	}

	sorted := make([]domain.ReservationItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	// Сначала валидация всех позиций, затем применение: всё или ничего.
	for _, item := range sorted {
		p, ok := r.products[item.ProductID]
		if !ok {
			return nil, domain.ErrProductNotFound
		}
		if p.StockQuantity < item.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: p.ID,
				SKU:       p.SKU,
				Requested: item.Quantity,
				Available: p.StockQuantity,
			}
		}
	}
	for _, item := range sorted {
		res := &domain.Reservation{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Status:    domain.ReservationStatusReserved,
		}
		r.reservations[orderID] = append(r.reservations[orderID], res)
		r.products[item.ProductID].StockQuantity -= item.Quantity
		result.ReservationIDs = append(result.ReservationIDs, res.ID)
		result.TotalQuantityReserved += item.Quantity
	}
	result.LineItemsReserved = len(sorted)
	return result, nil
}

func (r *memoryRepository) ReleaseStock(_ context.Context, orderID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for _, res := range r.reservations[orderID] {
		if res.Status != domain.ReservationStatusReserved {
			continue
		}
		res.Status = domain.ReservationStatusReleased
		r.products[res.ProductID].StockQuantity += res.Quantity
		released++
	}
	return released, nil
}

func (r *memoryRepository) AddStock(_ context.Context, productID, idempotencyKey string, quantity int32, reason string, referenceID, notes *string) (*domain.StockAdjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.adjustments[idempotencyKey]; ok {
		clone := *prior
		return &clone, domain.ErrAdjustmentExists
	}
	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	adjustment := &domain.StockAdjustment{
		ID:               uuid.New().String(),
		ProductID:        productID,
		QuantityChange:   quantity,
		PreviousQuantity: p.StockQuantity,
		NewQuantity:      p.StockQuantity + quantity,
		Reason:           reason,
		IdempotencyKey:   idempotencyKey,
		ReferenceID:      referenceID,
		Notes:            notes,
	}
	if adjustment.NewQuantity < 0 {
		return nil, &domain.InsufficientStockError{
			ProductID: p.ID,
			SKU:       p.SKU,
			Requested: -quantity,
			Available: p.StockQuantity,
		}
	}
	r.adjustments[idempotencyKey] = adjustment
	p.StockQuantity = adjustment.NewQuantity
	clone := *adjustment
	return &clone, nil
}

func (r *memoryRepository) GetAdjustmentByKey(_ context.Context, key string) (*domain.StockAdjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adjustments[key]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func setupRouter() (*gin.Engine, *memoryRepository) {
	gin.SetMode(gin.TestMode)

	repo := newMemoryRepository()
	h := NewHandler(service.NewInventoryService(repo))

	router := gin.New()
	router.POST("/products", h.CreateProduct)
	router.GET("/products/:id/availability", h.GetAvailability)
	router.POST("/products/:id/stock", h.AddStock)
	router.POST("/reservations", h.Reserve)
	router.DELETE("/reservations/:order_id", h.Release)
	return router, repo
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
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

func createProduct(t *testing.T, router *gin.Engine, sku string, stock int32) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/products", map[string]any{
		"sku":            sku,
		"name":           "Тестовый товар " + sku,
		"stock_quantity": stock,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	return decode(t, w)["product_id"].(string)
}

// TestHandler_Products тестирует создание товара и выдачу остатка.
func TestHandler_Products(t *testing.T) {
	t.Run("создание и доступность", func(t *testing.T) {
		router, _ := setupRouter()
		id := createProduct(t, router, "WIDGET-1", 10)

		w := doJSON(t, router, http.MethodGet, "/products/"+id+"/availability", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "WIDGET-1", resp["sku"])
		assert.EqualValues(t, 10, resp["stock_quantity"])
	})

	t.Run("дубликат sku — 409", func(t *testing.T) {
		router, _ := setupRouter()
		createProduct(t, router, "WIDGET-1", 10)

		w := doJSON(t, router, http.MethodPost, "/products", map[string]any{
			"sku": "WIDGET-1", "name": "Дубликат", "stock_quantity": 1,
		})
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "sku_already_exists", decode(t, w)["error"])
	})

	t.Run("неизвестный товар — 404", func(t *testing.T) {
		router, _ := setupRouter()
		w := doJSON(t, router, http.MethodGet, "/products/"+uuid.New().String()+"/availability", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestHandler_Reserve тестирует резервирование с идемпотентным повтором.
func TestHandler_Reserve(t *testing.T) {
	reserveBody := func(orderID string, items ...map[string]any) map[string]any {
		return map[string]any{"order_id": orderID, "items": items}
	}

	t.Run("успех и идентичный повтор", func(t *testing.T) {
		router, _ := setupRouter()
		productID := createProduct(t, router, "WIDGET-1", 10)
		orderID := uuid.New().String()

		body := reserveBody(orderID, map[string]any{"product_id": productID, "quantity": 3})
		w1 := doJSON(t, router, http.MethodPost, "/reservations", body)
		w2 := doJSON(t, router, http.MethodPost, "/reservations", body)

		require.Equal(t, http.StatusCreated, w1.Code)
		require.Equal(t, http.StatusCreated, w2.Code)

		r1, r2 := decode(t, w1), decode(t, w2)
		assert.Equal(t, r1["reservation_ids"], r2["reservation_ids"])
		assert.EqualValues(t, 3, r2["total_quantity_reserved"])

		// Повтор не списал остаток второй раз.
		avail := decode(t, doJSON(t, router, http.MethodGet, "/products/"+productID+"/availability", nil))
		assert.EqualValues(t, 7, avail["stock_quantity"])
	})

	t.Run("нехватка остатка — 409 с деталями", func(t *testing.T) {
		router, _ := setupRouter()
		productID := createProduct(t, router, "WIDGET-1", 2)

		w := doJSON(t, router, http.MethodPost, "/reservations",
			reserveBody(uuid.New().String(), map[string]any{"product_id": productID, "quantity": 5}))

		require.Equal(t, http.StatusConflict, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "insufficient_stock", resp["error"])
		assert.Equal(t, productID, resp["product_id"])
		assert.Equal(t, "WIDGET-1", resp["product_sku"])
		assert.EqualValues(t, 5, resp["requested"])
		assert.EqualValues(t, 2, resp["available"])
	})

	t.Run("нехватка по одной позиции откатывает всё", func(t *testing.T) {
		router, _ := setupRouter()
		okProduct := createProduct(t, router, "WIDGET-1", 10)
		lowProduct := createProduct(t, router, "WIDGET-2", 1)

		w := doJSON(t, router, http.MethodPost, "/reservations",
			reserveBody(uuid.New().String(),
				map[string]any{"product_id": okProduct, "quantity": 2},
				map[string]any{"product_id": lowProduct, "quantity": 5}))
		require.Equal(t, http.StatusConflict, w.Code)

		avail := decode(t, doJSON(t, router, http.MethodGet, "/products/"+okProduct+"/availability", nil))
		assert.EqualValues(t, 10, avail["stock_quantity"])
	})

	t.Run("неизвестный товар — 404", func(t *testing.T) {
		router, _ := setupRouter()
		w := doJSON(t, router, http.MethodPost, "/reservations",
			reserveBody(uuid.New().String(), map[string]any{"product_id": uuid.New().String(), "quantity": 1}))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("валидация — 400", func(t *testing.T) {
		router, _ := setupRouter()
		w := doJSON(t, router, http.MethodPost, "/reservations", map[string]any{"order_id": "не uuid"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestHandler_Release тестирует снятие резерваций.
func TestHandler_Release(t *testing.T) {
	t.Run("возврат остатка и идемпотентный повтор", func(t *testing.T) {
		router, _ := setupRouter()
		productID := createProduct(t, router, "WIDGET-1", 10)
		orderID := uuid.New().String()

		doJSON(t, router, http.MethodPost, "/reservations", map[string]any{
			"order_id": orderID,
			"items":    []map[string]any{{"product_id": productID, "quantity": 4}},
		})

		w1 := doJSON(t, router, http.MethodDelete, "/reservations/"+orderID, nil)
		w2 := doJSON(t, router, http.MethodDelete, "/reservations/"+orderID, nil)
		assert.Equal(t, http.StatusOK, w1.Code)
		assert.Equal(t, http.StatusOK, w2.Code)

		avail := decode(t, doJSON(t, router, http.MethodGet, "/products/"+productID+"/availability", nil))
		assert.EqualValues(t, 10, avail["stock_quantity"])
	})

	t.Run("несуществующий заказ — 200", func(t *testing.T) {
		router, _ := setupRouter()
		w := doJSON(t, router, http.MethodDelete, "/reservations/"+uuid.New().String(), nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// TestHandler_AddStock тестирует корректировки остатка.
func TestHandler_AddStock(t *testing.T) {
	t.Run("пополнение и идемпотентный повтор", func(t *testing.T) {
		router, _ := setupRouter()
		productID := createProduct(t, router, "WIDGET-1", 10)

		body := map[string]any{
			"idempotency_key": "restock-1",
			"quantity":        5,
			"reason":          "restock",
		}
		w1 := doJSON(t, router, http.MethodPost, "/products/"+productID+"/stock", body)
		w2 := doJSON(t, router, http.MethodPost, "/products/"+productID+"/stock", body)

		require.Equal(t, http.StatusCreated, w1.Code)
		require.Equal(t, http.StatusOK, w2.Code)

		r1, r2 := decode(t, w1), decode(t, w2)
		assert.Equal(t, r1["adjustment_id"], r2["adjustment_id"])
		assert.Equal(t, false, r1["already_exists"])
		assert.Equal(t, true, r2["already_exists"])

		avail := decode(t, doJSON(t, router, http.MethodGet, "/products/"+productID+"/availability", nil))
		assert.EqualValues(t, 15, avail["stock_quantity"])
	})

	t.Run("списание ниже нуля — 409", func(t *testing.T) {
		router, _ := setupRouter()
		productID := createProduct(t, router, "WIDGET-1", 3)

		w := doJSON(t, router, http.MethodPost, "/products/"+productID+"/stock", map[string]any{
			"idempotency_key": "shrink-1",
			"quantity":        -5,
			"reason":          "damage",
		})
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "insufficient_stock", decode(t, w)["error"])
	})

	t.Run("неизвестный товар — 404", func(t *testing.T) {
		router, _ := setupRouter()
		w := doJSON(t, router, http.MethodPost, "/products/"+uuid.New().String()+"/stock", map[string]any{
			"idempotency_key": "k", "quantity": 1, "reason": "restock",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

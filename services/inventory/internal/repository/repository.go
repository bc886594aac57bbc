// Package repository реализует движок резервирования остатков через GORM.
// Все мутации склада идут одной транзакцией с блокировкой строк товара.
package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/order-pipeline/services/inventory/internal/domain"
)

// ProductModel — GORM модель для таблицы products.
type ProductModel struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey"`
	SKU           string    `gorm:"column:sku;type:varchar(64);not null;uniqueIndex"`
	Name          string    `gorm:"column:name;type:varchar(255);not null"`
	StockQuantity int32     `gorm:"column:stock_quantity;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (ProductModel) TableName() string {
	return "products"
}

// ReservationModel — GORM модель для таблицы reservations.
type ReservationModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID   string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID string    `gorm:"column:product_id;type:varchar(36);not null;index"`
	Quantity  int32     `gorm:"column:quantity;not null"`
	Status    string    `gorm:"column:status;type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (ReservationModel) TableName() string {
	return "reservations"
}

// AdjustmentModel — GORM модель для таблицы stock_adjustments.
type AdjustmentModel struct {
	ID               string    `gorm:"column:id;type:varchar(36);primaryKey"`
	ProductID        string    `gorm:"column:product_id;type:varchar(36);not null;index"`
	QuantityChange   int32     `gorm:"column:quantity_change;not null"`
	PreviousQuantity int32     `gorm:"column:previous_quantity;not null"`
	NewQuantity      int32     `gorm:"column:new_quantity;not null"`
	Reason           string    `gorm:"column:reason;type:varchar(64);not null"`
	IdempotencyKey   string    `gorm:"column:idempotency_key;type:varchar(128);not null;uniqueIndex"`
	ReferenceID      *string   `gorm:"column:reference_id;type:varchar(64)"`
	Notes            *string   `gorm:"column:notes;type:text"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (AdjustmentModel) TableName() string {
	return "stock_adjustments"
}

func (m *ProductModel) toDomain() *domain.Product {
	return &domain.Product{
		ID:            m.ID,
		SKU:           m.SKU,
		Name:          m.Name,
		StockQuantity: m.StockQuantity,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (m *ReservationModel) toDomain() *domain.Reservation {
	return &domain.Reservation{
		ID:        m.ID,
		OrderID:   m.OrderID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Status:    domain.ReservationStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (m *AdjustmentModel) toDomain() *domain.StockAdjustment {
	return &domain.StockAdjustment{
		ID:               m.ID,
		ProductID:        m.ProductID,
		QuantityChange:   m.QuantityChange,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		Reason:           m.Reason,
		IdempotencyKey:   m.IdempotencyKey,
		ReferenceID:      m.ReferenceID,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
	}
}

// InventoryRepository определяет операции движка резервирования.
type InventoryRepository interface {
	// CreateProduct сохраняет новый товар. Дубликат sku → ErrDuplicateSKU.
	CreateProduct(ctx context.Context, p *domain.Product) error

	// GetProduct возвращает товар по ID.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// ReserveStock атомарно резервирует остаток под заказ.
	// Повтор с тем же order_id возвращает прежние резервации без
	// изменения склада. Любая ошибка по любой позиции откатывает всё.
	ReserveStock(ctx context.Context, orderID string, items []domain.ReservationItem) (*domain.ReserveResult, error)

	// ReleaseStock возвращает остаток по всем RESERVED строкам заказа.
	// Отсутствие резерваций — успех (идемпотентность).
	ReleaseStock(ctx context.Context, orderID string) (int, error)

	// AddStock атомарно записывает корректировку и меняет остаток.
	// Дубликат идемпотентного ключа возвращает прежнюю корректировку
	// и ErrAdjustmentExists.
	AddStock(ctx context.Context, productID, idempotencyKey string, quantity int32, reason string, referenceID, notes *string) (*domain.StockAdjustment, error)

	// GetAdjustmentByKey возвращает корректировку по идемпотентному ключу.
	GetAdjustmentByKey(ctx context.Context, key string) (*domain.StockAdjustment, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository создаёт репозиторий склада.
func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

// CreateProduct сохраняет новый товар.
func (r *inventoryRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	m := &ProductModel{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		StockQuantity: p.StockQuantity,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicateSKU
		}
		return err
	}
	p.CreatedAt = m.CreatedAt
	p.UpdatedAt = m.UpdatedAt
	return nil
}

// GetProduct возвращает товар по ID.
func (r *inventoryRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var m ProductModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// ReserveStock резервирует остаток одной транзакцией.
// Порядок: short-circuit по существующим резервациям заказа, затем по
// каждой позиции FOR UPDATE на строке товара, повторная проверка
// резерваций уже под блокировками, проверка остатка, вставка резервации,
// декремент. Товары блокируются в порядке product_id, чтобы
// конкурирующие заказы не взаимоблокировались.
func (r *inventoryRepository) ReserveStock(ctx context.Context, orderID string, items []domain.ReservationItem) (*domain.ReserveResult, error) {
	result := &domain.ReserveResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findReserved(tx, orderID, false)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			fillExisting(result, existing)
			return nil
		}

		sorted := make([]domain.ReservationItem, len(items))
		copy(sorted, items)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].ProductID < sorted[j].ProductID
		})

		products := make(map[string]ProductModel, len(sorted))
		for _, item := range sorted {
			var product ProductModel
			if err := tx.
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", item.ProductID).
				First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrProductNotFound
				}
				return err
			}
			products[item.ProductID] = product
		}

		// Первый просмотр шёл по снимку до блокировок: конкурирующий
		// повтор того же заказа мог закоммитить резервации, пока мы
		// ждали блокировку товара. Блокирующее чтение видит их.
		existing, err = findReserved(tx, orderID, true)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			fillExisting(result, existing)
			return nil
		}

		for _, item := range sorted {
			product := products[item.ProductID]
			if product.StockQuantity < item.Quantity {
				return &domain.InsufficientStockError{
					ProductID: product.ID,
					SKU:       product.SKU,
					Requested: item.Quantity,
					Available: product.StockQuantity,
				}
			}

			reservation := &ReservationModel{
				ID:        uuid.New().String(),
				OrderID:   orderID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Status:    string(domain.ReservationStatusReserved),
			}
			if err := tx.Create(reservation).Error; err != nil {
				return err
			}

			if err := tx.Model(&ProductModel{}).
				Where("id = ?", item.ProductID).
				Updates(map[string]any{
					"stock_quantity": gorm.Expr("stock_quantity - ?", item.Quantity),
					"updated_at":     time.Now().UTC(),
				}).Error; err != nil {
				return err
			}

			result.ReservationIDs = append(result.ReservationIDs, reservation.ID)
			result.TotalQuantityReserved += item.Quantity
		}
		result.LineItemsReserved = len(sorted)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// findReserved возвращает RESERVED резервации заказа, опционально
// блокирующим чтением.
func findReserved(tx *gorm.DB, orderID string, forUpdate bool) ([]ReservationModel, error) {
	q := tx.
		Where("order_id = ? AND status = ?", orderID, string(domain.ReservationStatusReserved)).
		Order("created_at")
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var reservations []ReservationModel
	if err := q.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// fillExisting заполняет результат по уже существующим резервациям.
func fillExisting(result *domain.ReserveResult, existing []ReservationModel) {
	result.AlreadyReserved = true
	result.LineItemsReserved = len(existing)
	for _, m := range existing {
		result.ReservationIDs = append(result.ReservationIDs, m.ID)
		result.TotalQuantityReserved += m.Quantity
	}
}

// ReleaseStock возвращает остаток по RESERVED строкам заказа.
// Возвращает число освобождённых резерваций.
func (r *inventoryRepository) ReleaseStock(ctx context.Context, orderID string) (int, error) {
	released := 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservations []ReservationModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ? AND status = ?", orderID, string(domain.ReservationStatusReserved)).
			Order("product_id").
			Find(&reservations).Error; err != nil {
			return err
		}
		if len(reservations) == 0 {
			return nil
		}

		for _, reservation := range reservations {
			if err := tx.
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", reservation.ProductID).
				First(&ProductModel{}).Error; err != nil {
				return err
			}

			if err := tx.Model(&ReservationModel{}).
				Where("id = ? AND status = ?", reservation.ID, string(domain.ReservationStatusReserved)).
				Updates(map[string]any{
					"status":     string(domain.ReservationStatusReleased),
					"updated_at": time.Now().UTC(),
				}).Error; err != nil {
				return err
			}

			if err := tx.Model(&ProductModel{}).
				Where("id = ?", reservation.ProductID).
				Updates(map[string]any{
					"stock_quantity": gorm.Expr("stock_quantity + ?", reservation.Quantity),
					"updated_at":     time.Now().UTC(),
				}).Error; err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// AddStock записывает корректировку и меняет остаток одной транзакцией.
func (r *inventoryRepository) AddStock(ctx context.Context, productID, idempotencyKey string, quantity int32, reason string, referenceID, notes *string) (*domain.StockAdjustment, error) {
	var adjustment *AdjustmentModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product ProductModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", productID).
			First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrProductNotFound
			}
			return err
		}

		adjustment = &AdjustmentModel{
			ID:               uuid.New().String(),
			ProductID:        productID,
			QuantityChange:   quantity,
			PreviousQuantity: product.StockQuantity,
			NewQuantity:      product.StockQuantity + quantity,
			Reason:           reason,
			IdempotencyKey:   idempotencyKey,
			ReferenceID:      referenceID,
			Notes:            notes,
		}
		if adjustment.NewQuantity < 0 {
			return &domain.InsufficientStockError{
				ProductID: product.ID,
				SKU:       product.SKU,
				Requested: -quantity,
				Available: product.StockQuantity,
			}
		}

		if err := tx.Create(adjustment).Error; err != nil {
			return err
		}

		return tx.Model(&ProductModel{}).
			Where("id = ?", productID).
			Updates(map[string]any{
				"stock_quantity": adjustment.NewQuantity,
				"updated_at":     time.Now().UTC(),
			}).Error
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			// Ключ уже применён: возвращаем прежнюю корректировку.
			prior, getErr := r.GetAdjustmentByKey(ctx, idempotencyKey)
			if getErr != nil {
				return nil, getErr
			}
			return prior, domain.ErrAdjustmentExists
		}
		return nil, err
	}
	return adjustment.toDomain(), nil
}

// GetAdjustmentByKey возвращает корректировку по идемпотентному ключу.
func (r *inventoryRepository) GetAdjustmentByKey(ctx context.Context, key string) (*domain.StockAdjustment, error) {
	var m AdjustmentModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// isDuplicateKeyError проверяет ошибку дубликата ключа (MySQL 1062).
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "1062")
}

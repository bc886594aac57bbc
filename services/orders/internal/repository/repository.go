// Package repository реализует хранилище заказов через GORM.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/order-pipeline/services/orders/internal/domain"
)

// ErrDuplicateLedgerID — заказ под эту запись леджера уже существует.
var ErrDuplicateLedgerID = errors.New("заказ для записи леджера уже существует")

// Model — GORM модель для таблицы orders.
type Model struct {
	ID               string      `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderLedgerID    string      `gorm:"column:order_ledger_id;type:varchar(36);not null;uniqueIndex"`
	UserID           string      `gorm:"column:user_id;type:varchar(36);not null;index"`
	Status           string      `gorm:"column:status;type:varchar(20);not null"`
	TotalAmountCents int64       `gorm:"column:total_amount_cents;not null"`
	Currency         string      `gorm:"column:currency;type:varchar(3);not null"`
	CreatedAt        time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time   `gorm:"column:updated_at;autoUpdateTime"`
	Items            []ItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (Model) TableName() string {
	return "orders"
}

// ItemModel — GORM модель для таблицы order_items.
type ItemModel struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID        string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID      string    `gorm:"column:product_id;type:varchar(36);not null"`
	Quantity       int32     `gorm:"column:quantity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (ItemModel) TableName() string {
	return "order_items"
}

func (m *Model) toDomain() *domain.Order {
	o := &domain.Order{
		ID:               m.ID,
		OrderLedgerID:    m.OrderLedgerID,
		UserID:           m.UserID,
		Status:           domain.Status(m.Status),
		TotalAmountCents: m.TotalAmountCents,
		Currency:         m.Currency,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Items:            make([]domain.OrderItem, len(m.Items)),
	}
	for i, item := range m.Items {
		o.Items[i] = domain.OrderItem{
			ID:             item.ID,
			OrderID:        item.OrderID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return o
}

func modelFromDomain(o *domain.Order) *Model {
	m := &Model{
		ID:               o.ID,
		OrderLedgerID:    o.OrderLedgerID,
		UserID:           o.UserID,
		Status:           string(o.Status),
		TotalAmountCents: o.TotalAmountCents,
		Currency:         o.Currency,
		Items:            make([]ItemModel, len(o.Items)),
	}
	for i, item := range o.Items {
		m.Items[i] = ItemModel{
			ID:             item.ID,
			OrderID:        item.OrderID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return m
}

// OrderRepository определяет методы работы с заказами.
type OrderRepository interface {
	// Create сохраняет заказ с позициями. Дубликат order_ledger_id →
	// ErrDuplicateLedgerID.
	Create(ctx context.Context, o *domain.Order) error

	// GetByID возвращает заказ с позициями.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByLedgerID возвращает заказ по записи леджера.
	GetByLedgerID(ctx context.Context, ledgerID string) (*domain.Order, error)

	// UpdateStatus условно сохраняет новый статус.
	// При RowsAffected == 0 возвращает gorm.ErrRecordNotFound.
	UpdateStatus(ctx context.Context, id string, from, to domain.Status) error
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создаёт репозиторий заказов.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create сохраняет заказ с позициями одной транзакцией.
func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	m := modelFromDomain(o)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateLedgerID
		}
		return err
	}
	o.CreatedAt = m.CreatedAt
	o.UpdatedAt = m.UpdatedAt
	return nil
}

// GetByID возвращает заказ с позициями.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var m Model
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// GetByLedgerID возвращает заказ по записи леджера.
func (r *orderRepository) GetByLedgerID(ctx context.Context, ledgerID string) (*domain.Order, error) {
	var m Model
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_ledger_id = ?", ledgerID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// UpdateStatus условно сохраняет новый статус.
func (r *orderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	result := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
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

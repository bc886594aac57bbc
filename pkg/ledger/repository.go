package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/order-pipeline/pkg/outbox"
)

// Ошибки репозитория.
var (
	// ErrNotFound — запись леджера не найдена.
	ErrNotFound = errors.New("запись леджера не найдена")

	// ErrDuplicateRequest — client_request_id уже занят другой записью.
	ErrDuplicateRequest = errors.New("повторный запрос с тем же идемпотентным ключом")

	// ErrStatusConflict — условное обновление не прошло: статус в БД
	// отличается от ожидаемого (кто-то успел раньше или переход недопустим).
	ErrStatusConflict = errors.New("конфликт статуса леджера")
)

// Model — GORM модель для таблицы order_ledgers.
type Model struct {
	ID                     string      `gorm:"column:id;type:varchar(36);primaryKey"`
	ClientRequestID        string      `gorm:"column:client_request_id;type:varchar(128);not null;uniqueIndex"`
	UserID                 string      `gorm:"column:user_id;type:varchar(36);not null;index"`
	Email                  string      `gorm:"column:email;type:varchar(255);not null"`
	Status                 string      `gorm:"column:status;type:varchar(30);not null;index"`
	TotalAmountCents       int64       `gorm:"column:total_amount_cents;not null"`
	Currency               string      `gorm:"column:currency;type:varchar(3);not null"`
	PaymentAuthorizationID *string     `gorm:"column:payment_authorization_id;type:varchar(36)"`
	OrderID                *string     `gorm:"column:order_id;type:varchar(36)"`
	FailureReason          *string     `gorm:"column:failure_reason;type:text"`
	RetryCount             int         `gorm:"column:retry_count;not null;default:0"`
	NextRetryAt            *time.Time  `gorm:"column:next_retry_at"`
	CreatedAt              time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time   `gorm:"column:updated_at;autoUpdateTime"`
	Items                  []ItemModel `gorm:"foreignKey:OrderLedgerID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (Model) TableName() string {
	return "order_ledgers"
}

// ItemModel — GORM модель для таблицы order_ledger_items.
type ItemModel struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderLedgerID  string    `gorm:"column:order_ledger_id;type:varchar(36);not null;index"`
	ProductID      string    `gorm:"column:product_id;type:varchar(36);not null"`
	Quantity       int32     `gorm:"column:quantity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (ItemModel) TableName() string {
	return "order_ledger_items"
}

// toDomain конвертирует GORM модель в доменную сущность.
func (m *Model) toDomain() *OrderLedger {
	l := &OrderLedger{
		ID:                     m.ID,
		ClientRequestID:        m.ClientRequestID,
		UserID:                 m.UserID,
		Email:                  m.Email,
		Status:                 Status(m.Status),
		TotalAmountCents:       m.TotalAmountCents,
		Currency:               m.Currency,
		PaymentAuthorizationID: m.PaymentAuthorizationID,
		OrderID:                m.OrderID,
		FailureReason:          m.FailureReason,
		RetryCount:             m.RetryCount,
		NextRetryAt:            m.NextRetryAt,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
		Items:                  make([]OrderLedgerItem, len(m.Items)),
	}
	for i, item := range m.Items {
		l.Items[i] = OrderLedgerItem{
			ID:             item.ID,
			OrderLedgerID:  item.OrderLedgerID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return l
}

// modelFromDomain конвертирует доменную сущность в GORM модель.
func modelFromDomain(l *OrderLedger) *Model {
	m := &Model{
		ID:                     l.ID,
		ClientRequestID:        l.ClientRequestID,
		UserID:                 l.UserID,
		Email:                  l.Email,
		Status:                 string(l.Status),
		TotalAmountCents:       l.TotalAmountCents,
		Currency:               l.Currency,
		PaymentAuthorizationID: l.PaymentAuthorizationID,
		OrderID:                l.OrderID,
		FailureReason:          l.FailureReason,
		RetryCount:             l.RetryCount,
		NextRetryAt:            l.NextRetryAt,
		CreatedAt:              l.CreatedAt,
		UpdatedAt:              l.UpdatedAt,
		Items:                  make([]ItemModel, len(l.Items)),
	}
	for i, item := range l.Items {
		m.Items[i] = ItemModel{
			ID:             item.ID,
			OrderLedgerID:  item.OrderLedgerID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return m
}

// Repository определяет методы работы с леджером.
type Repository interface {
	// GetByID возвращает запись леджера с позициями.
	GetByID(ctx context.Context, id string) (*OrderLedger, error)

	// GetByClientRequestID возвращает запись по идемпотентному ключу клиента.
	GetByClientRequestID(ctx context.Context, clientRequestID string) (*OrderLedger, error)

	// CreateWithOutbox создаёт запись леджера, её позиции и outbox событие
	// в ОДНОЙ транзакции. event может быть nil (аудит AUTHORIZATION_FAILED —
	// событие саги не создаётся).
	CreateWithOutbox(ctx context.Context, l *OrderLedger, event *outbox.Event) error

	// UpdateStatus условно переводит леджер из статуса from в to.
	// orderID, при ненулевом значении, записывается вместе со статусом
	// (шаг ORDER_CREATED). Возвращает ErrStatusConflict, если статус в БД
	// не равен from.
	UpdateStatus(ctx context.Context, id string, from, to Status, orderID *string) error

	// MarkFailed условно переводит леджер из from в FAILED с причиной.
	MarkFailed(ctx context.Context, id string, from Status, reason string) error

	// ScheduleRetry увеличивает retry_count и сохраняет время следующей
	// попытки. Статус не меняется: сага возобновится с текущего шага.
	ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error
}

// repository — GORM реализация Repository.
type repository struct {
	db *gorm.DB
}

// NewRepository создаёт репозиторий леджера.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// GetByID возвращает запись леджера с позициями.
func (r *repository) GetByID(ctx context.Context, id string) (*OrderLedger, error) {
	var m Model
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// GetByClientRequestID возвращает запись по идемпотентному ключу.
func (r *repository) GetByClientRequestID(ctx context.Context, clientRequestID string) (*OrderLedger, error) {
	var m Model
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("client_request_id = ?", clientRequestID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// CreateWithOutbox атомарно создаёт леджер, позиции и outbox событие.
// Уникальный индекс client_request_id линеаризует конкурирующие вставки
// с одним ключом: проигравший получает ErrDuplicateRequest.
func (r *repository) CreateWithOutbox(ctx context.Context, l *OrderLedger, event *outbox.Event) error {
	m := modelFromDomain(l)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		if event != nil {
			if err := tx.Create(outbox.ModelFromEvent(event)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateRequest
		}
		return err
	}

	l.CreatedAt = m.CreatedAt
	l.UpdatedAt = m.UpdatedAt
	return nil
}

// UpdateStatus условно переводит леджер в новый статус.
func (r *repository) UpdateStatus(ctx context.Context, id string, from, to Status, orderID *string) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}

	updates := map[string]any{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}
	if orderID != nil {
		updates["order_id"] = *orderID
	}

	result := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.statusConflictOrNotFound(ctx, id)
	}
	return nil
}

// MarkFailed условно переводит леджер в FAILED с причиной.
func (r *repository) MarkFailed(ctx context.Context, id string, from Status, reason string) error {
	if !CanTransition(from, StatusFailed) {
		return ErrInvalidTransition
	}

	result := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{
			"status":         string(StatusFailed),
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.statusConflictOrNotFound(ctx, id)
	}
	return nil
}

// ScheduleRetry фиксирует запланированную попытку в леджере.
func (r *repository) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"next_retry_at": nextRetryAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// statusConflictOrNotFound различает отсутствие записи и конфликт статуса.
func (r *repository) statusConflictOrNotFound(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Model{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
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

// Package repository реализует доступ к хранилищу авторизаций через GORM.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/order-pipeline/services/payments/internal/domain"
)

// ErrDuplicateKey — вставка нарушила уникальный индекс idempotency_key.
// Означает, что параллельный запрос с тем же ключом успел раньше.
var ErrDuplicateKey = errors.New("дубликат идемпотентного ключа")

// Model — GORM модель для таблицы payment_authorizations.
type Model struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID         string    `gorm:"column:user_id;type:varchar(36);not null;index"`
	AmountCents    int64     `gorm:"column:amount_cents;not null"`
	Currency       string    `gorm:"column:currency;type:varchar(3);not null"`
	Status         string    `gorm:"column:status;type:varchar(20);not null"`
	IdempotencyKey string    `gorm:"column:idempotency_key;type:varchar(128);not null;uniqueIndex"`
	CaptureKey     *string   `gorm:"column:capture_key;type:varchar(128)"`
	VoidKey        *string   `gorm:"column:void_key;type:varchar(128)"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (Model) TableName() string {
	return "payment_authorizations"
}

// toDomain конвертирует GORM модель в доменную сущность.
func (m *Model) toDomain() *domain.Authorization {
	return &domain.Authorization{
		ID:             m.ID,
		UserID:         m.UserID,
		AmountCents:    m.AmountCents,
		Currency:       m.Currency,
		Status:         domain.Status(m.Status),
		IdempotencyKey: m.IdempotencyKey,
		CaptureKey:     m.CaptureKey,
		VoidKey:        m.VoidKey,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// modelFromDomain конвертирует доменную сущность в GORM модель.
func modelFromDomain(a *domain.Authorization) *Model {
	return &Model{
		ID:             a.ID,
		UserID:         a.UserID,
		AmountCents:    a.AmountCents,
		Currency:       a.Currency,
		Status:         string(a.Status),
		IdempotencyKey: a.IdempotencyKey,
		CaptureKey:     a.CaptureKey,
		VoidKey:        a.VoidKey,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// AuthorizationRepository определяет методы работы с авторизациями.
type AuthorizationRepository interface {
	// Create сохраняет новую авторизацию. Возвращает ErrDuplicateKey,
	// если idempotency_key уже занят.
	Create(ctx context.Context, a *domain.Authorization) error

	// GetByID возвращает авторизацию по ID.
	GetByID(ctx context.Context, id string) (*domain.Authorization, error)

	// GetByIdempotencyKey возвращает авторизацию по ключу авторизации.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Authorization, error)

	// UpdateState условно сохраняет новый статус и ключи мутаций.
	// WHERE по прежнему статусу защищает от гонки конкурирующих мутаций;
	// при RowsAffected == 0 возвращает gorm.ErrRecordNotFound — вызывающий
	// перечитывает запись и повторяет переход на доменной сущности.
	UpdateState(ctx context.Context, a *domain.Authorization, fromStatus domain.Status) error
}

type authorizationRepository struct {
	db *gorm.DB
}

// NewAuthorizationRepository создаёт репозиторий авторизаций.
func NewAuthorizationRepository(db *gorm.DB) AuthorizationRepository {
	return &authorizationRepository{db: db}
}

// Create сохраняет новую авторизацию.
func (r *authorizationRepository) Create(ctx context.Context, a *domain.Authorization) error {
	m := modelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	return nil
}

// GetByID возвращает авторизацию по ID.
func (r *authorizationRepository) GetByID(ctx context.Context, id string) (*domain.Authorization, error) {
	var m Model
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAuthorizationNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// GetByIdempotencyKey возвращает авторизацию по идемпотентному ключу.
func (r *authorizationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Authorization, error) {
	var m Model
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAuthorizationNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// UpdateState условно сохраняет статус и ключи мутаций.
func (r *authorizationRepository) UpdateState(ctx context.Context, a *domain.Authorization, fromStatus domain.Status) error {
	result := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ? AND status = ?", a.ID, string(fromStatus)).
		Updates(map[string]any{
			"status":      string(a.Status),
			"capture_key": a.CaptureKey,
			"void_key":    a.VoidKey,
			"updated_at":  time.Now().UTC(),
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

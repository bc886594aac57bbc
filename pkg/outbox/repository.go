package outbox

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEventNotFound — событие outbox не найдено.
var ErrEventNotFound = errors.New("событие outbox не найдено")

// claimVisibility — тайм-аут видимости захваченного события.
// Если воркер упал, не завершив обработку, событие снова станет доступным.
const claimVisibility = 60 * time.Second

// Model — GORM модель для таблицы outbox_events.
type Model struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	AggregateType string     `gorm:"column:aggregate_type;type:varchar(50);not null;index:idx_outbox_aggregate"`
	AggregateID   string     `gorm:"column:aggregate_id;type:varchar(36);not null;index:idx_outbox_aggregate"`
	EventType     string     `gorm:"column:event_type;type:varchar(100);not null"`
	Payload       []byte     `gorm:"column:payload;type:json;not null"`
	Status        string     `gorm:"column:status;type:varchar(20);not null;default:'PENDING';index:idx_outbox_due"`
	RetryCount    int        `gorm:"column:retry_count;not null;default:0"`
	NextRetryAt   *time.Time `gorm:"column:next_retry_at;index:idx_outbox_due"`
	ClaimedAt     *time.Time `gorm:"column:claimed_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt   *time.Time `gorm:"column:processed_at"`
}

// TableName возвращает имя таблицы в БД.
func (Model) TableName() string {
	return "outbox_events"
}

// ToEvent конвертирует GORM модель в доменную сущность.
func (m *Model) ToEvent() *Event {
	return &Event{
		ID:            m.ID,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		EventType:     m.EventType,
		Payload:       m.Payload,
		Status:        Status(m.Status),
		RetryCount:    m.RetryCount,
		NextRetryAt:   m.NextRetryAt,
		ClaimedAt:     m.ClaimedAt,
		CreatedAt:     m.CreatedAt,
		ProcessedAt:   m.ProcessedAt,
	}
}

// ModelFromEvent конвертирует доменную сущность в GORM модель.
// Используется также репозиторием леджера для ко-вставки события
// в одной транзакции с бизнес-данными.
func ModelFromEvent(e *Event) *Model {
	return &Model{
		ID:            e.ID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		Payload:       e.Payload,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		NextRetryAt:   e.NextRetryAt,
		ClaimedAt:     e.ClaimedAt,
		CreatedAt:     e.CreatedAt,
		ProcessedAt:   e.ProcessedAt,
	}
}

// Repository определяет методы работы с таблицей outbox_events.
type Repository interface {
	// ClaimDue атомарно захватывает до limit готовых к обработке событий.
	// Гарантия: одно событие наблюдается не более чем одним воркером
	// одновременно (FOR UPDATE SKIP LOCKED + отметка claimed_at).
	ClaimDue(ctx context.Context, limit int) ([]*Event, error)

	// MarkProcessed помечает событие как обработанное (терминальный исход саги).
	MarkProcessed(ctx context.Context, id string) error

	// ScheduleRetry увеличивает retry_count и назначает время следующей попытки.
	// Событие остаётся в статусе PENDING, отметка захвата снимается.
	ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error

	// DeleteProcessedBefore удаляет обработанные события старше указанного
	// времени. Возвращает количество удалённых строк.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// repository — GORM реализация Repository.
type repository struct {
	db *gorm.DB
}

// NewRepository создаёт репозиторий outbox.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ClaimDue захватывает готовые события в одной транзакции:
// блокирующий SELECT с SKIP LOCKED отсекает конкурирующих воркеров,
// отметка claimed_at до коммита скрывает строки после снятия блокировок.
func (r *repository) ClaimDue(ctx context.Context, limit int) ([]*Event, error) {
	var models []Model
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", string(StatusPending)).
			Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
			Where("claimed_at IS NULL OR claimed_at <= ?", now.Add(-claimVisibility)).
			Order("created_at ASC").
			Limit(limit).
			Find(&models).Error; err != nil {
			return err
		}

		if len(models) == 0 {
			return nil
		}

		ids := make([]string, len(models))
		for i := range models {
			ids[i] = models[i].ID
		}

		return tx.Model(&Model{}).
			Where("id IN ?", ids).
			Update("claimed_at", now).Error
	})
	if err != nil {
		return nil, err
	}

	events := make([]*Event, len(models))
	for i := range models {
		events[i] = models[i].ToEvent()
		events[i].ClaimedAt = &now
	}
	return events, nil
}

// MarkProcessed помечает событие как обработанное.
func (r *repository) MarkProcessed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       string(StatusProcessed),
			"processed_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ScheduleRetry назначает следующую попытку обработки события.
func (r *repository) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"next_retry_at": nextRetryAt,
			"claimed_at":    nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// DeleteProcessedBefore удаляет обработанные события пачками по 1000,
// чтобы не держать длинные блокировки.
func (r *repository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", string(StatusProcessed), before).
		Limit(1000).
		Delete(&Model{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

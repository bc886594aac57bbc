// Package outbox реализует Transactional Outbox для надёжной доставки событий.
// Запись события создаётся в одной транзакции с бизнес-данными (леджером),
// оркестратор забирает события конкурентно-безопасным claim-запросом.
package outbox

import (
	"time"
)

// Status — статус события в таблице outbox.
type Status string

const (
	// StatusPending — событие ожидает обработки.
	StatusPending Status = "PENDING"

	// StatusProcessed — событие обработано (сага завершилась терминально).
	StatusProcessed Status = "PROCESSED"

	// StatusFailed — событие признано необрабатываемым.
	StatusFailed Status = "FAILED"
)

// Типы агрегатов и событий пайплайна.
const (
	AggregateOrderLedger = "order_ledger"

	// EventOrderAuthorized — платёж авторизован, сагу можно запускать.
	EventOrderAuthorized = "OrderAuthorized"
)

// Event — запись в таблице outbox_events.
type Event struct {
	ID            string     // UUID события
	AggregateType string     // Тип агрегата (order_ledger)
	AggregateID   string     // ID агрегата (order_ledger_id)
	EventType     string     // Тип события (OrderAuthorized)
	Payload       []byte     // JSON payload
	Status        Status     // PENDING / PROCESSED / FAILED
	RetryCount    int        // Количество выполненных попыток саги
	NextRetryAt   *time.Time // Время следующей попытки (nil = можно сразу)
	ClaimedAt     *time.Time // Время захвата воркером (nil = не захвачено)
	CreatedAt     time.Time  // Время создания
	ProcessedAt   *time.Time // Время обработки (nil = не обработано)
}

// Package ledger содержит авторитетную запись попытки заказа (Order Ledger)
// и её машину состояний. Леджер принадлежит Edge API; оркестратор двигает
// статус по мере выполнения шагов саги, используя его как точку возобновления.
package ledger

import (
	"errors"
	"time"
)

// Status — статус записи леджера.
type Status string

const (
	// StatusAwaitingAuthorization — запись создана, авторизация ещё не выполнена.
	StatusAwaitingAuthorization Status = "AWAITING_AUTHORIZATION"

	// StatusAuthorized — платёж авторизован, outbox событие записано.
	StatusAuthorized Status = "AUTHORIZED"

	// StatusAuthorizationFailed — платёж отклонён; запись ведётся для аудита.
	StatusAuthorizationFailed Status = "AUTHORIZATION_FAILED"

	// StatusOrderCreated — заказ создан в Orders Service.
	StatusOrderCreated Status = "ORDER_CREATED"

	// StatusInventoryReserved — склад зарезервирован.
	StatusInventoryReserved Status = "INVENTORY_RESERVED"

	// StatusPaymentCaptured — платёж списан.
	StatusPaymentCaptured Status = "PAYMENT_CAPTURED"

	// StatusCompleted — заказ подтверждён, сага завершена успешно.
	StatusCompleted Status = "COMPLETED"

	// StatusCompensating — выполняются компенсирующие действия.
	// Блокирует движение саги вперёд, но не терминален.
	StatusCompensating Status = "COMPENSATING"

	// StatusFailed — сага завершена с ошибкой после компенсации.
	StatusFailed Status = "FAILED"
)

// IsTerminal возвращает true для финальных статусов.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAuthorizationFailed
}

// Ошибки машины состояний.
var (
	ErrInvalidTransition = errors.New("недопустимый переход статуса леджера")
)

// allowedTransitions определяет допустимые переходы статусов.
var allowedTransitions = map[Status][]Status{
	StatusAwaitingAuthorization: {StatusAuthorized, StatusAuthorizationFailed},
	StatusAuthorized:            {StatusOrderCreated, StatusCompensating},
	StatusOrderCreated:          {StatusInventoryReserved, StatusCompensating},
	StatusInventoryReserved:     {StatusPaymentCaptured, StatusCompensating},
	StatusPaymentCaptured:       {StatusCompleted, StatusCompensating},
	StatusCompensating:          {StatusFailed},
	// Терминальные статусы переходов не имеют.
}

// CanTransition проверяет допустимость перехода from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderLedger — запись о попытке заказа.
type OrderLedger struct {
	ID                     string            // UUID записи
	ClientRequestID        string            // Idempotency-Key клиента (уникален)
	UserID                 string            // ID пользователя
	Email                  string            // Email клиента
	Status                 Status            // Текущий статус
	TotalAmountCents       int64             // Сумма заказа в центах
	Currency               string            // ISO 4217
	PaymentAuthorizationID *string           // ID авторизации платежа (после AUTHORIZED)
	OrderID                *string           // ID заказа в Orders Service (после ORDER_CREATED)
	FailureReason          *string           // Причина ошибки
	RetryCount             int               // Количество retry попыток саги
	NextRetryAt            *time.Time        // Время следующей попытки
	Items                  []OrderLedgerItem // Позиции заказа
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// OrderLedgerItem — позиция заказа в леджере.
// Создаётся в одной транзакции с записью леджера.
type OrderLedgerItem struct {
	ID             string // UUID позиции
	OrderLedgerID  string // FK на леджер
	ProductID      string // ID товара
	Quantity       int32  // Количество (> 0)
	UnitPriceCents int64  // Цена за единицу в центах (>= 0); цены поставляет клиент
}

// Total возвращает стоимость позиции.
func (i *OrderLedgerItem) Total() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// TotalFromItems считает сумму заказа без округлений: Σ qty × unit_price_cents.
func TotalFromItems(items []OrderLedgerItem) int64 {
	var total int64
	for i := range items {
		total += items[i].Total()
	}
	return total
}

package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/order-pipeline/pkg/outbox"
)

// OrderAuthorizedPayload — payload события OrderAuthorized.
// Несёт всё необходимое саге, чтобы не зависеть от формы запроса клиента.
type OrderAuthorizedPayload struct {
	OrderLedgerID          string `json:"order_ledger_id"`
	UserID                 string `json:"user_id"`
	Email                  string `json:"email"`
	TotalAmountCents       int64  `json:"total_amount_cents"`
	Currency               string `json:"currency"`
	PaymentAuthorizationID string `json:"payment_authorization_id"`
}

// NewOrderAuthorizedEvent создаёт outbox событие для авторизованного леджера.
// Вставляется репозиторием в одной транзакции с записью леджера.
func NewOrderAuthorizedEvent(l *OrderLedger) (*outbox.Event, error) {
	if l.PaymentAuthorizationID == nil {
		return nil, fmt.Errorf("леджер %s: отсутствует payment_authorization_id", l.ID)
	}

	payload, err := json.Marshal(OrderAuthorizedPayload{
		OrderLedgerID:          l.ID,
		UserID:                 l.UserID,
		Email:                  l.Email,
		TotalAmountCents:       l.TotalAmountCents,
		Currency:               l.Currency,
		PaymentAuthorizationID: *l.PaymentAuthorizationID,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации payload: %w", err)
	}

	return &outbox.Event{
		ID:            uuid.New().String(),
		AggregateType: outbox.AggregateOrderLedger,
		AggregateID:   l.ID,
		EventType:     outbox.EventOrderAuthorized,
		Payload:       payload,
		Status:        outbox.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// ParseOrderAuthorizedPayload разбирает payload события OrderAuthorized.
func ParseOrderAuthorizedPayload(data []byte) (*OrderAuthorizedPayload, error) {
	var p OrderAuthorizedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("ошибка разбора payload OrderAuthorized: %w", err)
	}
	if p.OrderLedgerID == "" {
		return nil, fmt.Errorf("payload OrderAuthorized: пустой order_ledger_id")
	}
	return &p, nil
}

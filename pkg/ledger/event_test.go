package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/order-pipeline/pkg/outbox"
)

// TestNewOrderAuthorizedEvent тестирует создание outbox события.
func TestNewOrderAuthorizedEvent(t *testing.T) {
	authID := "auth-123"
	led := &OrderLedger{
		ID:                     "ledger-123",
		UserID:                 "user-123",
		Email:                  "c@example.com",
		Status:                 StatusAuthorized,
		TotalAmountCents:       2000,
		Currency:               "USD",
		PaymentAuthorizationID: &authID,
	}

	event, err := NewOrderAuthorizedEvent(led)
	require.NoError(t, err)

	assert.Equal(t, outbox.AggregateOrderLedger, event.AggregateType)
	assert.Equal(t, "ledger-123", event.AggregateID)
	assert.Equal(t, outbox.EventOrderAuthorized, event.EventType)
	assert.Equal(t, outbox.StatusPending, event.Status)

	payload, err := ParseOrderAuthorizedPayload(event.Payload)
	require.NoError(t, err)
	assert.Equal(t, "ledger-123", payload.OrderLedgerID)
	assert.Equal(t, "user-123", payload.UserID)
	assert.Equal(t, int64(2000), payload.TotalAmountCents)
	assert.Equal(t, "auth-123", payload.PaymentAuthorizationID)
}

// TestNewOrderAuthorizedEvent_NoAuthorization тестирует ошибку при
// отсутствии payment_authorization_id.
func TestNewOrderAuthorizedEvent_NoAuthorization(t *testing.T) {
	led := &OrderLedger{ID: "ledger-123", Status: StatusAuthorized}

	event, err := NewOrderAuthorizedEvent(led)
	assert.Error(t, err)
	assert.Nil(t, event)
}

// TestParseOrderAuthorizedPayload_Invalid тестирует разбор битого payload.
func TestParseOrderAuthorizedPayload_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"не JSON", []byte("{не json")},
		{"пустой order_ledger_id", []byte(`{"user_id":"u1"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOrderAuthorizedPayload(tt.payload)
			assert.Error(t, err)
		})
	}
}

package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/order-pipeline/services/payments/internal/domain"
)

// TestMock_Authorize тестирует эвристики токенов mock шлюза.
func TestMock_Authorize(t *testing.T) {
	gw := NewMock(Config{})
	ctx := context.Background()

	tests := []struct {
		name        string
		token       string
		declineCode string // пусто = не decline
		gatewayErr  bool
	}{
		{name: "обычный токен проходит", token: "tok_ok"},
		{name: "недостаточно средств", token: "tok_decline_insufficient", declineCode: "insufficient_funds"},
		{name: "просроченная карта", token: "tok_decline_expired", declineCode: "expired_card"},
		{name: "украденная карта", token: "tok_decline_stolen", declineCode: "stolen_card"},
		{name: "подозрение на fraud", token: "tok_decline_fraud", declineCode: "suspected_fraud"},
		{name: "неизвестная причина отклонения", token: "tok_decline_whatever", declineCode: "card_declined"},
		{name: "сбой шлюза", token: "tok_error", gatewayErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gw.Authorize(ctx, tt.token)

			switch {
			case tt.gatewayErr:
				assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
			case tt.declineCode != "":
				declined, ok := domain.AsDeclined(err)
				require.True(t, ok, "ожидали DeclinedError, получили %v", err)
				assert.Equal(t, tt.declineCode, declined.Code)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

// TestMock_Authorize_Deterministic тестирует, что отклонения не зависят
// от failure rate: повтор даёт тот же результат.
func TestMock_Authorize_Deterministic(t *testing.T) {
	gw := NewMock(Config{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		declined, ok := domain.AsDeclined(gw.Authorize(ctx, "tok_decline_insufficient"))
		require.True(t, ok)
		assert.Equal(t, "insufficient_funds", declined.Code)
	}
}

// TestMock_Authorize_FailureRate тестирует случайные сбои шлюза.
func TestMock_Authorize_FailureRate(t *testing.T) {
	t.Run("rate 1.0 всегда падает", func(t *testing.T) {
		gw := NewMock(Config{FailureRate: 1.0})
		for i := 0; i < 5; i++ {
			assert.ErrorIs(t, gw.Authorize(context.Background(), "tok_ok"), domain.ErrGatewayUnavailable)
		}
	})

	t.Run("rate 0 никогда не падает", func(t *testing.T) {
		gw := NewMock(Config{FailureRate: 0})
		for i := 0; i < 5; i++ {
			assert.NoError(t, gw.Authorize(context.Background(), "tok_ok"))
		}
	})
}

// TestMock_Authorize_Latency тестирует искусственную задержку и отмену контекста.
func TestMock_Authorize_Latency(t *testing.T) {
	gw := NewMock(Config{Latency: 50 * time.Millisecond})

	start := time.Now()
	assert.NoError(t, gw.Authorize(context.Background(), "tok_ok"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, gw.Authorize(ctx, "tok_ok"), domain.ErrGatewayUnavailable)
}

package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/services/orchestrator/internal/client"
)

func compLedger() *ledger.OrderLedger {
	orderID := "order-1"
	authID := "auth-1"
	return &ledger.OrderLedger{
		ID:                     "ledger-1",
		OrderID:                &orderID,
		PaymentAuthorizationID: &authID,
		Status:                 ledger.StatusCompensating,
	}
}

// TestCompensator_Compensate тестирует применимость шагов по lastStatus.
func TestCompensator_Compensate(t *testing.T) {
	ctx := context.Background()

	t.Run("до capture: void, release, cancel", func(t *testing.T) {
		orders := new(MockOrdersAPI)
		inventory := new(MockInventoryAPI)
		payments := new(MockPaymentsAPI)
		c := NewCompensator(orders, inventory, payments)

		payments.On("Void", ctx, "auth-1", "void-ledger-1").Return(nil)
		inventory.On("Release", ctx, "order-1").Return(nil)
		orders.On("CancelOrder", ctx, "order-1").Return(nil)

		result := c.Compensate(ctx, compLedger(), ledger.StatusInventoryReserved)
		assert.True(t, result.Completed())
		assert.Equal(t, []string{stepVoidPayment, stepReleaseInventory, stepCancelOrder}, result.StepsExecuted)
	})

	t.Run("после capture void не выполняется", func(t *testing.T) {
		orders := new(MockOrdersAPI)
		inventory := new(MockInventoryAPI)
		payments := new(MockPaymentsAPI)
		c := NewCompensator(orders, inventory, payments)

		inventory.On("Release", ctx, "order-1").Return(nil)
		orders.On("CancelOrder", ctx, "order-1").Return(nil)

		result := c.Compensate(ctx, compLedger(), ledger.StatusPaymentCaptured)
		assert.True(t, result.Completed())
		assert.Equal(t, []string{stepReleaseInventory, stepCancelOrder}, result.StepsExecuted)
		payments.AssertNotCalled(t, "Void", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("резервации не было: release пропускается", func(t *testing.T) {
		orders := new(MockOrdersAPI)
		inventory := new(MockInventoryAPI)
		payments := new(MockPaymentsAPI)
		c := NewCompensator(orders, inventory, payments)

		payments.On("Void", ctx, "auth-1", "void-ledger-1").Return(nil)
		orders.On("CancelOrder", ctx, "order-1").Return(nil)

		result := c.Compensate(ctx, compLedger(), ledger.StatusOrderCreated)
		assert.True(t, result.Completed())
		assert.Equal(t, []string{stepVoidPayment, stepCancelOrder}, result.StepsExecuted)
		inventory.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("заказа нет: только void", func(t *testing.T) {
		orders := new(MockOrdersAPI)
		inventory := new(MockInventoryAPI)
		payments := new(MockPaymentsAPI)
		c := NewCompensator(orders, inventory, payments)

		led := compLedger()
		led.OrderID = nil
		payments.On("Void", ctx, "auth-1", "void-ledger-1").Return(nil)

		result := c.Compensate(ctx, led, ledger.StatusAuthorized)
		assert.True(t, result.Completed())
		assert.Equal(t, []string{stepVoidPayment}, result.StepsExecuted)
		orders.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
	})

	t.Run("already_voided считается успехом", func(t *testing.T) {
		orders := new(MockOrdersAPI)
		inventory := new(MockInventoryAPI)
		payments := new(MockPaymentsAPI)
		c := NewCompensator(orders, inventory, payments)

		payments.On("Void", ctx, "auth-1", "void-ledger-1").
			Return(&client.DownstreamError{Service: "payments", Code: "already_voided", Status: 409})
		inventory.On("Release", ctx, "order-1").Return(nil)
		orders.On("CancelOrder", ctx, "order-1").Return(nil)

		result := c.Compensate(ctx, compLedger(), ledger.StatusInventoryReserved)
		assert.True(t, result.Completed())
	})

	t.Run("частичная ошибка не останавливает прогон", func(t *testing.T) {
		orders := new(MockOrdersAPI)
		inventory := new(MockInventoryAPI)
		payments := new(MockPaymentsAPI)
		c := NewCompensator(orders, inventory, payments)

		payments.On("Void", ctx, "auth-1", "void-ledger-1").
			Return(&client.DownstreamError{Service: "payments", Code: "connection_error", Retryable: true})
		inventory.On("Release", ctx, "order-1").Return(nil)
		orders.On("CancelOrder", ctx, "order-1").Return(nil)

		result := c.Compensate(ctx, compLedger(), ledger.StatusInventoryReserved)
		assert.False(t, result.Completed())
		assert.Len(t, result.Errors, 1)
		// Остальные шаги выполнены несмотря на ошибку void.
		assert.Equal(t, []string{stepVoidPayment, stepReleaseInventory, stepCancelOrder}, result.StepsExecuted)
	})
}

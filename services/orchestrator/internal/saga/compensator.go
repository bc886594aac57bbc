package saga

import (
	"context"
	"fmt"

	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/pkg/metrics"
	"example.com/order-pipeline/services/orchestrator/internal/client"
)

// Имена компенсирующих шагов.
const (
	stepVoidPayment      = "void_payment"
	stepReleaseInventory = "release_inventory"
	stepCancelOrder      = "cancel_order"
)

// CompensationResult — итог прогона компенсации.
type CompensationResult struct {
	StepsExecuted []string
	Errors        []string
}

// Completed возвращает true, если все применимые шаги прошли успешно.
func (r CompensationResult) Completed() bool {
	return len(r.Errors) == 0
}

// Compensator выполняет компенсирующие действия в строгом обратном
// порядке: void → release → cancel. Каждый шаг идемпотентен и
// best-effort: частичная ошибка не останавливает прогон.
type Compensator struct {
	orders    OrdersAPI
	inventory InventoryAPI
	payments  PaymentsAPI
}

// NewCompensator создаёт исполнитель компенсаций.
func NewCompensator(orders OrdersAPI, inventory InventoryAPI, payments PaymentsAPI) *Compensator {
	return &Compensator{orders: orders, inventory: inventory, payments: payments}
}

// Compensate откатывает выполненные шаги саги.
// lastStatus — последний успешно зафиксированный статус леджера до
// перехода в COMPENSATING: от него зависит применимость шагов.
func (c *Compensator) Compensate(ctx context.Context, led *ledger.OrderLedger, lastStatus ledger.Status) CompensationResult {
	log := logger.FromContext(ctx).With().
		Str("order_ledger_id", led.ID).
		Str("last_status", string(lastStatus)).
		Logger()
	log.Info().Msg("Запуск компенсации")

	result := CompensationResult{}

	// 1. Void Payment — только пока capture не случился.
	if voidApplicable(lastStatus) && led.PaymentAuthorizationID != nil {
		err := c.payments.Void(ctx, *led.PaymentAuthorizationID, "void-"+led.ID)
		if client.IsAlreadyVoided(err) {
			err = nil
		}
		c.record(&result, stepVoidPayment, err)
	}

	// 2. Release Inventory — только после успешной резервации.
	if releaseApplicable(lastStatus) && led.OrderID != nil {
		c.record(&result, stepReleaseInventory, c.inventory.Release(ctx, *led.OrderID))
	}

	// 3. Cancel Order — если заказ был создан.
	if led.OrderID != nil {
		c.record(&result, stepCancelOrder, c.orders.CancelOrder(ctx, *led.OrderID))
	}

	if result.Completed() {
		log.Info().
			Strs("steps", result.StepsExecuted).
			Msg("Компенсация завершена")
	} else {
		log.Error().
			Strs("steps", result.StepsExecuted).
			Strs("errors", result.Errors).
			Msg("Компенсация завершена с ошибками")
	}
	return result
}

// record фиксирует итог шага в результате и метриках.
func (c *Compensator) record(result *CompensationResult, step string, err error) {
	result.StepsExecuted = append(result.StepsExecuted, step)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", step, err))
		metrics.CompensationStepsTotal.WithLabelValues(step, "error").Inc()
		return
	}
	metrics.CompensationStepsTotal.WithLabelValues(step, "success").Inc()
}

// voidApplicable — capture ещё не выполнялся.
func voidApplicable(lastStatus ledger.Status) bool {
	switch lastStatus {
	case ledger.StatusAuthorized, ledger.StatusOrderCreated, ledger.StatusInventoryReserved:
		return true
	}
	return false
}

// releaseApplicable — резервация была выполнена.
func releaseApplicable(lastStatus ledger.Status) bool {
	return lastStatus == ledger.StatusInventoryReserved || lastStatus == ledger.StatusPaymentCaptured
}

// Package saga реализует исполнитель саги заказа: по outbox событию
// OrderAuthorized ведёт леджер через createOrder → reserveInventory →
// capturePayment → confirmOrder, используя текущий статус как точку
// возобновления. Ошибки шагов обрабатываются политикой повторов,
// постоянные ошибки запускают компенсацию.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/pkg/metrics"
	"example.com/order-pipeline/pkg/outbox"
	"example.com/order-pipeline/services/orchestrator/internal/client"
)

// Имена шагов саги.
const (
	stepCreateOrder      = "create_order"
	stepReserveInventory = "reserve_inventory"
	stepCapturePayment   = "capture_payment"
	stepConfirmOrder     = "confirm_order"
)

// Outcome — итог прогона саги для одного события.
type Outcome int

const (
	// OutcomeCompleted — сага дошла до COMPLETED. Событие обработано.
	OutcomeCompleted Outcome = iota

	// OutcomeFailed — терминальный отказ без повтора (битый payload,
	// пропавший леджер, уже FAILED/COMPENSATING). Событие обработано.
	OutcomeFailed

	// OutcomeRequiresRetry — шаг упал с retryable ошибкой, лимит не
	// исчерпан. Событие остаётся PENDING с новым next_retry_at.
	OutcomeRequiresRetry

	// OutcomeCompensated — компенсация выполнена, леджер в FAILED.
	// Событие обработано.
	OutcomeCompensated
)

// Result — итог Execute.
type Result struct {
	Outcome     Outcome
	Ledger      *ledger.OrderLedger // nil, если леджер не найден
	NextRetryAt time.Time           // заполнено для OutcomeRequiresRetry
	Reason      string              // диагностика для Failed/Compensated
}

// OrdersAPI — операции Orders Service, нужные саге.
type OrdersAPI interface {
	CreateOrder(ctx context.Context, req client.CreateOrderRequest) (string, error)
	ConfirmOrder(ctx context.Context, orderID string) error
	CancelOrder(ctx context.Context, orderID string) error
}

// InventoryAPI — операции Inventory Service, нужные саге.
type InventoryAPI interface {
	Reserve(ctx context.Context, orderID string, items []client.ReserveItem) error
	Release(ctx context.Context, orderID string) error
}

// PaymentsAPI — операции Payments Service, нужные саге.
type PaymentsAPI interface {
	Capture(ctx context.Context, authorizationID, idempotencyKey string) error
	Void(ctx context.Context, authorizationID, idempotencyKey string) error
}

// Executor ведёт леджер по графу состояний саги.
type Executor struct {
	repo        ledger.Repository
	orders      OrdersAPI
	inventory   InventoryAPI
	payments    PaymentsAPI
	compensator *Compensator
	policy      RetryPolicy

	now func() time.Time
}

// NewExecutor создаёт исполнитель саги.
func NewExecutor(repo ledger.Repository, orders OrdersAPI, inventory InventoryAPI, payments PaymentsAPI, policy RetryPolicy) *Executor {
	return &Executor{
		repo:        repo,
		orders:      orders,
		inventory:   inventory,
		payments:    payments,
		compensator: NewCompensator(orders, inventory, payments),
		policy:      policy,
		now:         time.Now,
	}
}

// Execute обрабатывает одно outbox событие OrderAuthorized.
// Повторная доставка того же события безопасна: шаги, чей статус уже
// зафиксирован, пропускаются, а удалённые вызовы идемпотентны.
func (e *Executor) Execute(ctx context.Context, event *outbox.Event) Result {
	log := logger.FromContext(ctx).With().
		Str("event_id", event.ID).
		Logger()

	payload, err := ledger.ParseOrderAuthorizedPayload(event.Payload)
	if err != nil {
		log.Error().Err(err).Msg("Не удалось разобрать payload события")
		return Result{Outcome: OutcomeFailed, Reason: "payload_parse_error"}
	}

	led, err := e.repo.GetByID(ctx, payload.OrderLedgerID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Error().Str("order_ledger_id", payload.OrderLedgerID).Msg("Запись леджера не найдена")
			return Result{Outcome: OutcomeFailed, Reason: "ledger_not_found"}
		}
		// Ошибка чтения БД идёт через общую таблицу решений, чтобы
		// постоянный сбой не повторял событие бесконечно.
		if e.policy.Decide(err, event.RetryCount) == DecisionRetry {
			return Result{
				Outcome:     OutcomeRequiresRetry,
				NextRetryAt: e.now().Add(e.policy.Delay(event.RetryCount + 1)),
			}
		}
		log.Error().Err(err).Str("order_ledger_id", payload.OrderLedgerID).
			Msg("Чтение леджера не удалось, лимит повторов исчерпан")
		return Result{Outcome: OutcomeFailed, Reason: "ledger_read_error"}
	}

	switch led.Status {
	case ledger.StatusCompleted:
		return Result{Outcome: OutcomeCompleted, Ledger: led}
	case ledger.StatusFailed, ledger.StatusCompensating, ledger.StatusAuthorizationFailed:
		return Result{Outcome: OutcomeFailed, Ledger: led, Reason: "ledger_terminal"}
	}

	for {
		step, err := e.runStep(ctx, led)
		if err == nil {
			if led.Status == ledger.StatusCompleted {
				log.Info().Str("order_ledger_id", led.ID).Msg("Сага завершена")
				return Result{Outcome: OutcomeCompleted, Ledger: led}
			}
			continue
		}

		// Конкурирующий исполнитель успел раньше: перечитываем и продолжаем.
		if errors.Is(err, ledger.ErrStatusConflict) {
			reloaded, getErr := e.repo.GetByID(ctx, led.ID)
			if getErr != nil {
				if e.policy.Decide(getErr, event.RetryCount) == DecisionRetry {
					return Result{
						Outcome:     OutcomeRequiresRetry,
						Ledger:      led,
						NextRetryAt: e.now().Add(e.policy.Delay(event.RetryCount + 1)),
					}
				}
				return Result{Outcome: OutcomeFailed, Ledger: led, Reason: "ledger_read_error"}
			}
			led = reloaded
			if led.Status.IsTerminal() || led.Status == ledger.StatusCompensating {
				if led.Status == ledger.StatusCompleted {
					return Result{Outcome: OutcomeCompleted, Ledger: led}
				}
				return Result{Outcome: OutcomeFailed, Ledger: led, Reason: "ledger_terminal"}
			}
			continue
		}

		metrics.SagaStepsTotal.WithLabelValues(step, "error").Inc()
		log.Warn().Err(err).
			Str("order_ledger_id", led.ID).
			Str("step", step).
			Int("retry_count", event.RetryCount).
			Msg("Шаг саги завершился ошибкой")

		if e.policy.Decide(err, event.RetryCount) == DecisionRetry {
			nextRetryAt := e.now().Add(e.policy.Delay(event.RetryCount + 1))
			if schedErr := e.repo.ScheduleRetry(ctx, led.ID, nextRetryAt); schedErr != nil {
				log.Error().Err(schedErr).Msg("Не удалось зафиксировать повтор в леджере")
			}
			return Result{Outcome: OutcomeRequiresRetry, Ledger: led, NextRetryAt: nextRetryAt}
		}

		return e.compensate(ctx, led, step, err)
	}
}

// runStep выполняет один шаг саги по текущему статусу леджера.
// Возвращает имя шага и ошибку; успешный шаг коммитит новый статус.
func (e *Executor) runStep(ctx context.Context, led *ledger.OrderLedger) (string, error) {
	switch led.Status {
	case ledger.StatusAuthorized:
		return stepCreateOrder, e.createOrder(ctx, led)
	case ledger.StatusOrderCreated:
		return stepReserveInventory, e.reserveInventory(ctx, led)
	case ledger.StatusInventoryReserved:
		return stepCapturePayment, e.capturePayment(ctx, led)
	case ledger.StatusPaymentCaptured:
		return stepConfirmOrder, e.confirmOrder(ctx, led)
	default:
		return "", fmt.Errorf("неожиданный статус леджера %s", led.Status)
	}
}

// createOrder — шаг AUTHORIZED → ORDER_CREATED.
func (e *Executor) createOrder(ctx context.Context, led *ledger.OrderLedger) error {
	items := make([]client.CreateOrderItem, len(led.Items))
	for i, item := range led.Items {
		items[i] = client.CreateOrderItem{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}

	orderID, err := e.orders.CreateOrder(ctx, client.CreateOrderRequest{
		OrderLedgerID:    led.ID,
		UserID:           led.UserID,
		TotalAmountCents: led.TotalAmountCents,
		Currency:         led.Currency,
		Items:            items,
	})
	if err != nil {
		return err
	}

	if err := e.repo.UpdateStatus(ctx, led.ID, ledger.StatusAuthorized, ledger.StatusOrderCreated, &orderID); err != nil {
		return err
	}
	led.Status = ledger.StatusOrderCreated
	led.OrderID = &orderID
	metrics.SagaStepsTotal.WithLabelValues(stepCreateOrder, "success").Inc()
	return nil
}

// reserveInventory — шаг ORDER_CREATED → INVENTORY_RESERVED.
func (e *Executor) reserveInventory(ctx context.Context, led *ledger.OrderLedger) error {
	items := make([]client.ReserveItem, len(led.Items))
	for i, item := range led.Items {
		items[i] = client.ReserveItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	if err := e.inventory.Reserve(ctx, *led.OrderID, items); err != nil {
		return err
	}

	if err := e.repo.UpdateStatus(ctx, led.ID, ledger.StatusOrderCreated, ledger.StatusInventoryReserved, nil); err != nil {
		return err
	}
	led.Status = ledger.StatusInventoryReserved
	metrics.SagaStepsTotal.WithLabelValues(stepReserveInventory, "success").Inc()
	return nil
}

// capturePayment — шаг INVENTORY_RESERVED → PAYMENT_CAPTURED.
// «Уже списано» считается успехом шага.
func (e *Executor) capturePayment(ctx context.Context, led *ledger.OrderLedger) error {
	err := e.payments.Capture(ctx, *led.PaymentAuthorizationID, "capture-"+led.ID)
	if err != nil && !client.IsAlreadyCaptured(err) {
		return err
	}

	if err := e.repo.UpdateStatus(ctx, led.ID, ledger.StatusInventoryReserved, ledger.StatusPaymentCaptured, nil); err != nil {
		return err
	}
	led.Status = ledger.StatusPaymentCaptured
	metrics.SagaStepsTotal.WithLabelValues(stepCapturePayment, "success").Inc()
	return nil
}

// confirmOrder — шаг PAYMENT_CAPTURED → COMPLETED.
func (e *Executor) confirmOrder(ctx context.Context, led *ledger.OrderLedger) error {
	if err := e.orders.ConfirmOrder(ctx, *led.OrderID); err != nil {
		return err
	}

	if err := e.repo.UpdateStatus(ctx, led.ID, ledger.StatusPaymentCaptured, ledger.StatusCompleted, nil); err != nil {
		return err
	}
	led.Status = ledger.StatusCompleted
	metrics.SagaStepsTotal.WithLabelValues(stepConfirmOrder, "success").Inc()
	return nil
}

// compensate переводит леджер в COMPENSATING, выполняет компенсацию
// и фиксирует FAILED независимо от её итога.
func (e *Executor) compensate(ctx context.Context, led *ledger.OrderLedger, failedStep string, stepErr error) Result {
	log := logger.FromContext(ctx)
	lastStatus := led.Status

	if err := e.repo.UpdateStatus(ctx, led.ID, lastStatus, ledger.StatusCompensating, nil); err != nil {
		if errors.Is(err, ledger.ErrStatusConflict) {
			// Кто-то уже компенсирует или финализировал: не вмешиваемся.
			return Result{Outcome: OutcomeFailed, Ledger: led, Reason: "compensation_conflict"}
		}
		log.Error().Err(err).Msg("Не удалось перевести леджер в COMPENSATING")
		return Result{
			Outcome:     OutcomeRequiresRetry,
			Ledger:      led,
			NextRetryAt: e.now().Add(e.policy.BaseDelay),
		}
	}
	led.Status = ledger.StatusCompensating

	compResult := e.compensator.Compensate(ctx, led, lastStatus)

	reason := fmt.Sprintf("%s: %v", failedStep, stepErr)
	if !compResult.Completed() {
		reason = fmt.Sprintf("%s; компенсация: %s", reason, strings.Join(compResult.Errors, "; "))
	}

	if err := e.repo.MarkFailed(ctx, led.ID, ledger.StatusCompensating, reason); err != nil {
		log.Error().Err(err).Msg("Не удалось перевести леджер в FAILED")
	}
	led.Status = ledger.StatusFailed
	led.FailureReason = &reason

	return Result{Outcome: OutcomeCompensated, Ledger: led, Reason: reason}
}

// Package service содержит бизнес-логику Orders Service.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/services/orders/internal/domain"
	"example.com/order-pipeline/services/orders/internal/repository"
)

// CreateOrderInput — входные данные создания заказа.
type CreateOrderInput struct {
	OrderLedgerID    string
	UserID           string
	TotalAmountCents int64
	Currency         string
	Items            []CreateOrderItem
}

// CreateOrderItem — позиция запроса создания заказа.
type CreateOrderItem struct {
	ProductID      string
	Quantity       int32
	UnitPriceCents int64
}

// OrderService реализует операции над заказами.
type OrderService struct {
	repo repository.OrderRepository
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(repo repository.OrderRepository) *OrderService {
	return &OrderService{repo: repo}
}

// Create создаёт заказ. Идемпотентна по order_ledger_id: повторное
// создание под ту же запись леджера возвращает существующий заказ.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, bool, error) {
	orderID := uuid.New().String()
	order := &domain.Order{
		ID:               orderID,
		OrderLedgerID:    in.OrderLedgerID,
		UserID:           in.UserID,
		Status:           domain.StatusCreated,
		TotalAmountCents: in.TotalAmountCents,
		Currency:         in.Currency,
		Items:            make([]domain.OrderItem, len(in.Items)),
	}
	for i, item := range in.Items {
		order.Items[i] = domain.OrderItem{
			ID:             uuid.New().String(),
			OrderID:        orderID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}

	err := s.repo.Create(ctx, order)
	if err == nil {
		lg := logger.FromContext(ctx)
		lg.Info().
			Str("order_id", order.ID).
			Str("order_ledger_id", order.OrderLedgerID).
			Msg("Заказ создан")
		return order, false, nil
	}
	if errors.Is(err, repository.ErrDuplicateLedgerID) {
		existing, getErr := s.repo.GetByLedgerID(ctx, in.OrderLedgerID)
		if getErr != nil {
			return nil, false, getErr
		}
		lg := logger.FromContext(ctx)
		lg.Info().
			Str("order_id", existing.ID).
			Str("order_ledger_id", in.OrderLedgerID).
			Msg("Повторное создание, возвращаем существующий заказ")
		return existing, true, nil
	}
	return nil, false, err
}

// GetByID возвращает заказ.
func (s *OrderService) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// Confirm подтверждает заказ. Повтор — успех, CANCELLED — ошибка.
func (s *OrderService) Confirm(ctx context.Context, id string) (*domain.Order, error) {
	return s.mutate(ctx, id, (*domain.Order).Confirm)
}

// Cancel отменяет заказ. Повтор — успех, CONFIRMED — ошибка.
func (s *OrderService) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	return s.mutate(ctx, id, (*domain.Order).Cancel)
}

// mutate применяет доменный переход с условным сохранением.
// Проигрыш гонки перечитывает заказ и повторяет переход.
func (s *OrderService) mutate(ctx context.Context, id string, transition func(*domain.Order) error) (*domain.Order, error) {
	for attempt := 0; attempt < 2; attempt++ {
		order, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		fromStatus := order.Status
		if err := transition(order); err != nil {
			return nil, err
		}
		if order.Status == fromStatus {
			return order, nil
		}

		err = s.repo.UpdateStatus(ctx, id, fromStatus, order.Status)
		if err == nil {
			lg := logger.FromContext(ctx)
			lg.Info().
				Str("order_id", id).
				Str("status", string(order.Status)).
				Msg("Статус заказа изменён")
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, domain.ErrOrderNotFound
}

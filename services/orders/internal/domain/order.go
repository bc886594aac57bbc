// Package domain содержит бизнес-сущности и доменные ошибки Orders Service.
package domain

import (
	"errors"
	"time"
)

// Status — статус заказа.
type Status string

const (
	// StatusCreated — заказ создан сагой.
	StatusCreated Status = "CREATED"

	// StatusConfirmed — заказ подтверждён. Терминальный статус.
	StatusConfirmed Status = "CONFIRMED"

	// StatusCancelled — заказ отменён компенсацией. Терминальный статус.
	StatusCancelled Status = "CANCELLED"
)

// Доменные ошибки Orders Service.
var (
	// ErrOrderNotFound — заказ не найден.
	ErrOrderNotFound = errors.New("заказ не найден")

	// ErrInvalidOrderStatus — переход между терминальными статусами
	// (CONFIRMED↔CANCELLED) запрещён.
	ErrInvalidOrderStatus = errors.New("недопустимый статус заказа")
)

// Order — заказ, созданный шагом саги.
// Один заказ на запись леджера: order_ledger_id уникален.
type Order struct {
	ID               string
	OrderLedgerID    string
	UserID           string
	Status           Status
	TotalAmountCents int64
	Currency         string
	Items            []OrderItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderItem — позиция заказа.
type OrderItem struct {
	ID             string
	OrderID        string
	ProductID      string
	Quantity       int32
	UnitPriceCents int64
}

// Confirm подтверждает заказ. Повтор — no-op, CANCELLED — ошибка.
func (o *Order) Confirm() error {
	switch o.Status {
	case StatusConfirmed:
		return nil
	case StatusCancelled:
		return ErrInvalidOrderStatus
	default:
		o.Status = StatusConfirmed
		o.UpdatedAt = time.Now().UTC()
		return nil
	}
}

// Cancel отменяет заказ. Повтор — no-op, CONFIRMED — ошибка.
func (o *Order) Cancel() error {
	switch o.Status {
	case StatusCancelled:
		return nil
	case StatusConfirmed:
		return ErrInvalidOrderStatus
	default:
		o.Status = StatusCancelled
		o.UpdatedAt = time.Now().UTC()
		return nil
	}
}

// Package domain содержит бизнес-сущности и доменные ошибки Inventory Service.
package domain

import "time"

// Product — товар на складе. Остаток меняется только через корректировки
// и транзакции резервирования.
type Product struct {
	ID            string
	SKU           string // Уникальный артикул
	Name          string
	StockQuantity int32 // Всегда >= 0
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReservationStatus — статус резервации.
type ReservationStatus string

const (
	// ReservationStatusReserved — остаток захолдирован под заказ.
	ReservationStatusReserved ReservationStatus = "RESERVED"

	// ReservationStatusReleased — резервация снята, остаток возвращён.
	ReservationStatusReleased ReservationStatus = "RELEASED"
)

// Reservation — резервация остатка под заказ.
// Одна логическая резервация на пару (order_id, product_id) в статусе RESERVED.
type Reservation struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int32
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockAdjustment — корректировка остатка. Неизменяема после записи.
type StockAdjustment struct {
	ID               string
	ProductID        string
	QuantityChange   int32
	PreviousQuantity int32
	NewQuantity      int32
	Reason           string
	IdempotencyKey   string
	ReferenceID      *string
	Notes            *string
	CreatedAt        time.Time
}

// ReservationItem — строка запроса резервирования.
type ReservationItem struct {
	ProductID string
	Quantity  int32
}

// ReserveResult — результат резервирования.
type ReserveResult struct {
	ReservationIDs []string

	// AlreadyReserved — true, если резервации под этот order_id уже
	// существовали: остаток не менялся, возвращены прежние строки.
	AlreadyReserved bool

	LineItemsReserved     int
	TotalQuantityReserved int32
}

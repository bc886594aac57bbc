package domain

import (
	"errors"
	"fmt"
)

// Доменные ошибки Inventory Service.
var (
	// ErrProductNotFound — товар не найден.
	ErrProductNotFound = errors.New("товар не найден")

	// ErrDuplicateSKU — артикул уже занят другим товаром.
	ErrDuplicateSKU = errors.New("артикул уже существует")

	// ErrAdjustmentExists — корректировка с таким идемпотентным ключом
	// уже применена.
	ErrAdjustmentExists = errors.New("корректировка уже применена")
)

// InsufficientStockError — остатка недостаточно для резервирования.
// Не retryable: повтор без изменения склада даст тот же результат.
type InsufficientStockError struct {
	ProductID string
	SKU       string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("недостаточно остатка %s: запрошено %d, доступно %d",
		e.SKU, e.Requested, e.Available)
}

// AsInsufficientStock возвращает InsufficientStockError, если err им является.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

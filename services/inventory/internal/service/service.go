// Package service содержит бизнес-логику Inventory Service.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/services/inventory/internal/domain"
	"example.com/order-pipeline/services/inventory/internal/repository"
)

// CreateProductInput — входные данные создания товара.
type CreateProductInput struct {
	SKU           string
	Name          string
	StockQuantity int32
}

// AddStockInput — входные данные корректировки остатка.
type AddStockInput struct {
	ProductID      string
	IdempotencyKey string
	Quantity       int32
	Reason         string
	ReferenceID    *string
	Notes          *string
}

// InventoryService реализует операции склада.
type InventoryService struct {
	repo repository.InventoryRepository
}

// NewInventoryService создаёт сервис склада.
func NewInventoryService(repo repository.InventoryRepository) *InventoryService {
	return &InventoryService{repo: repo}
}

// CreateProduct создаёт товар.
func (s *InventoryService) CreateProduct(ctx context.Context, in CreateProductInput) (*domain.Product, error) {
	product := &domain.Product{
		ID:            uuid.New().String(),
		SKU:           in.SKU,
		Name:          in.Name,
		StockQuantity: in.StockQuantity,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	lg := logger.FromContext(ctx)
	lg.Info().
		Str("product_id", product.ID).
		Str("sku", product.SKU).
		Int32("stock_quantity", product.StockQuantity).
		Msg("Товар создан")
	return product, nil
}

// GetProduct возвращает товар по ID.
func (s *InventoryService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// Reserve резервирует остаток под заказ.
func (s *InventoryService) Reserve(ctx context.Context, orderID string, items []domain.ReservationItem) (*domain.ReserveResult, error) {
	result, err := s.repo.ReserveStock(ctx, orderID, items)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	if result.AlreadyReserved {
		log.Info().
			Str("order_id", orderID).
			Int("line_items", result.LineItemsReserved).
			Msg("Повторное резервирование, возвращаем прежние резервации")
	} else {
		log.Info().
			Str("order_id", orderID).
			Int("line_items", result.LineItemsReserved).
			Int32("total_quantity", result.TotalQuantityReserved).
			Msg("Остаток зарезервирован")
	}
	return result, nil
}

// Release снимает резервации заказа и возвращает остаток.
func (s *InventoryService) Release(ctx context.Context, orderID string) error {
	released, err := s.repo.ReleaseStock(ctx, orderID)
	if err != nil {
		return err
	}

	lg := logger.FromContext(ctx)
	lg.Info().
		Str("order_id", orderID).
		Int("released", released).
		Msg("Резервации заказа сняты")
	return nil
}

// AddStock применяет корректировку остатка.
// Повтор с тем же ключом возвращает прежнюю корректировку.
func (s *InventoryService) AddStock(ctx context.Context, in AddStockInput) (*domain.StockAdjustment, bool, error) {
	adjustment, err := s.repo.AddStock(ctx, in.ProductID, in.IdempotencyKey,
		in.Quantity, in.Reason, in.ReferenceID, in.Notes)
	if errors.Is(err, domain.ErrAdjustmentExists) {
		return adjustment, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	lg := logger.FromContext(ctx)
	lg.Info().
		Str("product_id", in.ProductID).
		Int32("quantity_change", in.Quantity).
		Int32("new_quantity", adjustment.NewQuantity).
		Msg("Остаток скорректирован")
	return adjustment, false, nil
}

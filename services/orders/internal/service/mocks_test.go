// Package service содержит моки для тестирования сервиса заказов.
package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/order-pipeline/services/orders/internal/domain"
)

// MockOrderRepository — мок OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByLedgerID(ctx context.Context, ledgerID string) (*domain.Order, error) {
	args := m.Called(ctx, ledgerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

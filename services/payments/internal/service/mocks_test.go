// Package service содержит моки для тестирования сервиса платежей.
package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/order-pipeline/services/payments/internal/domain"
)

// MockAuthorizationRepository — мок AuthorizationRepository.
type MockAuthorizationRepository struct {
	mock.Mock
}

func (m *MockAuthorizationRepository) Create(ctx context.Context, a *domain.Authorization) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAuthorizationRepository) GetByID(ctx context.Context, id string) (*domain.Authorization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Authorization), args.Error(1)
}

func (m *MockAuthorizationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Authorization, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Authorization), args.Error(1)
}

func (m *MockAuthorizationRepository) UpdateState(ctx context.Context, a *domain.Authorization, fromStatus domain.Status) error {
	args := m.Called(ctx, a, fromStatus)
	return args.Error(0)
}

// MockGateway — мок платёжного шлюза.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Authorize(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

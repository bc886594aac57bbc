// Package saga содержит моки для тестирования исполнителя саги.
package saga

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/pkg/outbox"
	"example.com/order-pipeline/services/orchestrator/internal/client"
)

// MockLedgerRepository — мок ledger.Repository.
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, id string) (*ledger.OrderLedger, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.OrderLedger), args.Error(1)
}

func (m *MockLedgerRepository) GetByClientRequestID(ctx context.Context, clientRequestID string) (*ledger.OrderLedger, error) {
	args := m.Called(ctx, clientRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.OrderLedger), args.Error(1)
}

func (m *MockLedgerRepository) CreateWithOutbox(ctx context.Context, l *ledger.OrderLedger, event *outbox.Event) error {
	args := m.Called(ctx, l, event)
	return args.Error(0)
}

func (m *MockLedgerRepository) UpdateStatus(ctx context.Context, id string, from, to ledger.Status, orderID *string) error {
	args := m.Called(ctx, id, from, to, orderID)
	return args.Error(0)
}

func (m *MockLedgerRepository) MarkFailed(ctx context.Context, id string, from ledger.Status, reason string) error {
	args := m.Called(ctx, id, from, reason)
	return args.Error(0)
}

func (m *MockLedgerRepository) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, nextRetryAt)
	return args.Error(0)
}

// MockOrdersAPI — мок клиента Orders Service.
type MockOrdersAPI struct {
	mock.Mock
}

func (m *MockOrdersAPI) CreateOrder(ctx context.Context, req client.CreateOrderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockOrdersAPI) ConfirmOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrdersAPI) CancelOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

// MockInventoryAPI — мок клиента Inventory Service.
type MockInventoryAPI struct {
	mock.Mock
}

func (m *MockInventoryAPI) Reserve(ctx context.Context, orderID string, items []client.ReserveItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *MockInventoryAPI) Release(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

// MockPaymentsAPI — мок клиента Payments Service.
type MockPaymentsAPI struct {
	mock.Mock
}

func (m *MockPaymentsAPI) Capture(ctx context.Context, authorizationID, idempotencyKey string) error {
	args := m.Called(ctx, authorizationID, idempotencyKey)
	return args.Error(0)
}

func (m *MockPaymentsAPI) Void(ctx context.Context, authorizationID, idempotencyKey string) error {
	args := m.Called(ctx, authorizationID, idempotencyKey)
	return args.Error(0)
}

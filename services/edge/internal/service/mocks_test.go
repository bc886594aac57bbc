// Package service содержит моки для тестирования Edge API.
package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/pkg/outbox"
	"example.com/order-pipeline/services/edge/internal/client"
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

// MockPaymentsGateway — мок клиента платежей.
type MockPaymentsGateway struct {
	mock.Mock
}

func (m *MockPaymentsGateway) Authorize(ctx context.Context, req client.AuthorizeRequest) (*client.AuthorizeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.AuthorizeResponse), args.Error(1)
}

// MockNotifier — мок уведомителя outbox.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(ctx context.Context) {
	m.Called(ctx)
}

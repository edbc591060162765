// internal/api/handler/mocks_test.go
package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"readreward/internal/auth"
	"readreward/internal/domain"
	"readreward/internal/reconciliation"
	"readreward/internal/repository"
)

// MockCompletionService is a mock implementation of service.CompletionService.
type MockCompletionService struct {
	mock.Mock
}

func (m *MockCompletionService) Complete(ctx context.Context, principal auth.Principal, contentID int64, report domain.ClientReport) (*domain.CompletionResult, error) {
	args := m.Called(ctx, principal, contentID, report)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompletionResult), args.Error(1)
}

// MockLedgerService is a mock implementation of service.LedgerService.
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) CreditTx(ctx context.Context, q repository.DBExecutor, userID int64, amount decimal.Decimal, kind domain.TransactionKind, referenceID string) (*domain.LedgerResult, error) {
	args := m.Called(ctx, q, userID, amount, kind, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerResult), args.Error(1)
}

func (m *MockLedgerService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, pixKey string) (*domain.LedgerResult, *domain.Withdrawal, error) {
	args := m.Called(ctx, userID, amount, pixKey)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.LedgerResult), args.Get(1).(*domain.Withdrawal), args.Error(2)
}

func (m *MockLedgerService) GetBalance(ctx context.Context, userID int64) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockLedgerService) GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerService) VerifyBalance(ctx context.Context, userID int64) (*domain.BalanceReport, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceReport), args.Error(1)
}

// MockStatsService is a mock implementation of service.StatsService.
type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) Refresh(ctx context.Context, userID int64) (*domain.StatsSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatsSnapshot), args.Error(1)
}

func (m *MockStatsService) Recompute(ctx context.Context, userID int64) (*domain.StatsSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatsSnapshot), args.Error(1)
}

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Checkout(ctx context.Context, principal auth.Principal, plan domain.Plan, customer domain.Customer) (*domain.CheckoutResult, error) {
	args := m.Called(ctx, principal, plan, customer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutResult), args.Error(1)
}

func (m *MockGateway) CreateOrder(ctx context.Context, plan domain.Plan, amount decimal.Decimal, customer domain.Customer) (*domain.CheckoutResult, error) {
	args := m.Called(ctx, plan, amount, customer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutResult), args.Error(1)
}

// MockOrderStatusReader is a mock implementation of OrderStatusReader.
type MockOrderStatusReader struct {
	mock.Mock
}

func (m *MockOrderStatusReader) OrderStatus(ctx context.Context, principal auth.Principal, externalID string) (*domain.PaymentOrder, error) {
	args := m.Called(ctx, principal, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentOrder), args.Error(1)
}

// MockSubmitter is a mock implementation of NotificationSubmitter.
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, n reconciliation.Notification) <-chan struct{} {
	m.Called(ctx, n)
	return nil
}

// internal/payment/gateway_test.go
package payment

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"readreward/internal/auth"
	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/internal/repository/memtest"
	"readreward/internal/util"
	"readreward/internal/validation"
)

const validCPF = "529.982.247-25"

// MockProvider is a mock implementation of Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateCharge(ctx context.Context, req ChargeRequest, idempotencyKey string) (*Charge, error) {
	args := m.Called(ctx, req, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Charge), args.Error(1)
}

func (m *MockProvider) GetCharge(ctx context.Context, externalID string) (*Charge, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Charge), args.Error(1)
}

// MockWatcher is a mock implementation of Watcher.
type MockWatcher struct {
	mock.Mock
}

func (m *MockWatcher) Watch(ctx context.Context, externalID string) {
	m.Called(ctx, externalID)
}

var price = decimal.RequireFromString("19.90")

func newTestGateway(store *memtest.Store, provider Provider, watcher Watcher) Gateway {
	return NewGateway(memtest.Executor{}, store.Orders(), provider, watcher,
		map[domain.Plan]decimal.Decimal{domain.PlanPaid: price},
		Merchant{Key: "pix@readreward.example", Name: "ReadReward", City: "Sao Paulo"},
		discardLogger())
}

func customer() domain.Customer {
	return domain.Customer{Name: "Ana Souza", Email: "ana@example.com", NationalID: validCPF}
}

func TestCheckout_InvalidDocumentMakesNoCall(t *testing.T) {
	store := memtest.NewStore()
	provider := new(MockProvider)
	g := newTestGateway(store, provider, nil)

	c := customer()
	c.NationalID = "529.982.247-26"
	_, err := g.Checkout(context.Background(), auth.Principal{UserID: 1}, domain.PlanPaid, c)
	assert.ErrorIs(t, err, util.ErrInvalidDocument)

	c.NationalID = "000.000.000-00"
	_, err = g.Checkout(context.Background(), auth.Principal{UserID: 1}, domain.PlanPaid, c)
	assert.ErrorIs(t, err, util.ErrInvalidDocument)

	provider.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_ProviderFailurePersistsNothing(t *testing.T) {
	store := memtest.NewStore()
	provider := new(MockProvider)
	watcher := new(MockWatcher)
	g := newTestGateway(store, provider, watcher)

	provider.On("CreateCharge", mock.Anything, mock.AnythingOfType("payment.ChargeRequest"), mock.AnythingOfType("string")).
		Return(nil, errors.New("boom: upstream said 52998224725 is blocked")).Once()

	_, err := g.Checkout(context.Background(), auth.Principal{UserID: 1}, domain.PlanPaid, customer())
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrPaymentProvider)
	assert.NotContains(t, err.Error(), "52998224725")

	pending, err := store.Orders().ListPendingBefore(context.Background(), memtest.Executor{}, farFuture, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	watcher.AssertNotCalled(t, "Watch", mock.Anything, mock.Anything)
	provider.AssertExpectations(t)
}

// failingOrders fails every insert.
type failingOrders struct {
	repository.PaymentOrderRepository
}

func (failingOrders) CreateOrder(context.Context, repository.DBExecutor, *domain.PaymentOrder) error {
	return errors.New("connection reset")
}

func TestCheckout_LogsChargeWhenOrderIsNotStored(t *testing.T) {
	store := memtest.NewStore()
	provider := new(MockProvider)
	watcher := new(MockWatcher)
	var logs bytes.Buffer
	g := NewGateway(memtest.Executor{}, failingOrders{store.Orders()}, provider, watcher,
		map[domain.Plan]decimal.Decimal{domain.PlanPaid: price},
		Merchant{Key: "pix@readreward.example", Name: "ReadReward", City: "Sao Paulo"},
		util.NewLogger(&logs, "error"))

	provider.On("CreateCharge", mock.Anything, mock.AnythingOfType("payment.ChargeRequest"), mock.AnythingOfType("string")).
		Return(&Charge{ID: "ch_lost", Status: "ACTIVE", Amount: price}, nil).Once()

	_, err := g.Checkout(context.Background(), auth.Principal{UserID: 3}, domain.PlanPaid, customer())
	require.Error(t, err)

	assert.Contains(t, logs.String(), `"level":"ERROR"`)
	assert.Contains(t, logs.String(), `"external_id":"ch_lost"`)
	assert.Contains(t, logs.String(), `"internal_reference":"rr.3.paid.`)
	watcher.AssertNotCalled(t, "Watch", mock.Anything, mock.Anything)
}

func TestCheckout_BuildsPayloadWhenProviderOmitsIt(t *testing.T) {
	store := memtest.NewStore()
	provider := new(MockProvider)
	watcher := new(MockWatcher)
	g := newTestGateway(store, provider, watcher)

	provider.On("CreateCharge", mock.Anything, mock.MatchedBy(func(req ChargeRequest) bool {
		userID, plan, _, err := domain.ParseInternalReference(req.Reference)
		return err == nil && userID == 7 && plan == domain.PlanPaid &&
			req.Amount == "19.90" && req.Customer.Document == "52998224725"
	}), mock.AnythingOfType("string")).
		Return(&Charge{ID: "ch-7_abc", Status: "ACTIVE", Amount: price}, nil).Once()
	watcher.On("Watch", mock.Anything, "ch-7_abc").Once()

	res, err := g.Checkout(context.Background(), auth.Principal{UserID: 7}, domain.PlanPaid, customer())
	require.NoError(t, err)
	assert.Equal(t, "ch-7_abc", res.ExternalID)
	assert.Equal(t, domain.PaymentStatusPending, res.Status)

	decoded, err := validation.DecodePix(res.Payload)
	require.NoError(t, err)
	assert.True(t, decoded.Amount.Equal(price))
	assert.Equal(t, "ch7abc", decoded.TxID)
	assert.Equal(t, "pix@readreward.example", decoded.Key)

	order, ok := store.Order("ch-7_abc")
	require.True(t, ok)
	assert.Equal(t, int64(7), order.UserID)
	assert.Equal(t, domain.PaymentStatusPending, order.Status)
	assert.Equal(t, res.Payload, order.Payload)

	provider.AssertExpectations(t)
	watcher.AssertExpectations(t)
}

func TestCheckout_VerifiesProviderPayload(t *testing.T) {
	good, err := validation.EncodePix(validation.PixPayload{Key: "k", MerchantName: "P", MerchantCity: "C", Amount: price})
	require.NoError(t, err)
	wrongAmount, err := validation.EncodePix(validation.PixPayload{Key: "k", MerchantName: "P", MerchantCity: "C", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	corrupted := good[:len(good)-4] + "0000"
	if corrupted == good {
		corrupted = good[:len(good)-4] + "FFFF"
	}

	t.Run("Accepted", func(t *testing.T) {
		store := memtest.NewStore()
		provider := new(MockProvider)
		provider.On("CreateCharge", mock.Anything, mock.Anything, mock.Anything).
			Return(&Charge{ID: "ch_1", Status: "ACTIVE", Payload: good}, nil).Once()

		res, err := newTestGateway(store, provider, nil).Checkout(context.Background(), auth.Principal{UserID: 1}, domain.PlanPaid, customer())
		require.NoError(t, err)
		assert.Equal(t, good, res.Payload)
	})

	for name, payload := range map[string]string{"WrongAmount": wrongAmount, "Corrupted": corrupted} {
		t.Run(name, func(t *testing.T) {
			store := memtest.NewStore()
			provider := new(MockProvider)
			provider.On("CreateCharge", mock.Anything, mock.Anything, mock.Anything).
				Return(&Charge{ID: "ch_1", Status: "ACTIVE", Payload: payload}, nil).Once()

			_, err := newTestGateway(store, provider, nil).Checkout(context.Background(), auth.Principal{UserID: 1}, domain.PlanPaid, customer())
			assert.ErrorIs(t, err, util.ErrPaymentProvider)
			_, ok := store.Order("ch_1")
			assert.False(t, ok)
		})
	}
}

func TestCheckout_InputRejections(t *testing.T) {
	g := newTestGateway(memtest.NewStore(), new(MockProvider), nil)

	_, err := g.Checkout(context.Background(), auth.Principal{}, domain.PlanPaid, customer())
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	_, err = g.Checkout(context.Background(), auth.Principal{UserID: 1}, domain.PlanFree, customer())
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	c := customer()
	c.Name = " "
	_, err = g.Checkout(context.Background(), auth.Principal{UserID: 1}, domain.PlanPaid, c)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestTxIDFrom(t *testing.T) {
	assert.Equal(t, "abc123", txIDFrom("abc-123"))
	assert.Len(t, txIDFrom("0123456789012345678901234567890"), maxTxIDLen)
	assert.Equal(t, "", txIDFrom("çã-"))
}

var farFuture = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)

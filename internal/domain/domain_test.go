// internal/domain/domain_test.go
package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternalReference(t *testing.T) {
	at := time.Date(2026, 10, 14, 15, 4, 5, 123_000_000, time.UTC)
	ref := BuildInternalReference(42, PlanPaid, at)
	assert.Equal(t, "rr.42.paid.1791990245123", ref)

	userID, plan, parsedAt, err := ParseInternalReference(ref)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
	assert.Equal(t, PlanPaid, plan)
	assert.True(t, at.Equal(parsedAt))

	for _, bad := range []string{"", "rr.42.paid", "xx.42.paid.1", "rr.0.paid.1", "rr.42.gold.1", "rr.42.paid.soon"} {
		_, _, _, err := ParseInternalReference(bad)
		assert.Error(t, err, bad)
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(PaymentStatusPending, PaymentStatusPaid))
	assert.True(t, CanTransition(PaymentStatusPending, PaymentStatusFailed))
	assert.False(t, CanTransition(PaymentStatusPending, PaymentStatusPending))
	assert.False(t, CanTransition(PaymentStatusPaid, PaymentStatusFailed))
	assert.False(t, CanTransition(PaymentStatusFailed, PaymentStatusPaid))
	assert.False(t, CanTransition(PaymentStatusPaid, PaymentStatusPending))

	assert.True(t, PaymentStatusPaid.IsTerminal())
	assert.False(t, PaymentStatusPending.IsTerminal())
	assert.False(t, PaymentStatus("refunded").Valid())
}

func TestCanWithdrawWith(t *testing.T) {
	floor := decimal.RequireFromString("50.00")
	assert.False(t, CanWithdrawWith(decimal.RequireFromString("49.99"), floor))
	assert.True(t, CanWithdrawWith(decimal.RequireFromString("50"), floor))
	assert.True(t, CanWithdrawWith(decimal.RequireFromString("120.10"), floor))
}

func TestSignedAmount(t *testing.T) {
	ten := decimal.NewFromInt(10)
	assert.True(t, SignedAmount(TransactionKindEarning, ten).Equal(ten))
	assert.True(t, SignedAmount(TransactionKindEarning, ten.Neg()).Equal(ten))
	assert.True(t, SignedAmount(TransactionKindWithdrawal, ten).Equal(ten.Neg()))
}

func TestNewCompletion(t *testing.T) {
	c := NewCompletion(1, 2, decimal.NewFromInt(15), ClientReport{Rating: 4, TimeSpent: 90})
	assert.Equal(t, "null", string(c.Answers))
	assert.Equal(t, 4, c.Rating)

	c = NewCompletion(1, 2, decimal.NewFromInt(15), ClientReport{Answers: []byte(`{"q1":"a"}`)})
	assert.JSONEq(t, `{"q1":"a"}`, string(c.Answers))
}

func TestNewUser(t *testing.T) {
	u := NewUser("ana")
	assert.Equal(t, PlanFree, u.Plan)
	assert.True(t, u.Balance.IsZero())
	assert.False(t, u.CanWithdraw)
	assert.True(t, PlanPaid.Valid())
	assert.False(t, Plan("gold").Valid())
}

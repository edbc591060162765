// internal/service/helpers_test.go
package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"readreward/internal/domain"
	"readreward/internal/repository/memtest"
	"readreward/internal/util"
)

var testFloor = decimal.NewFromInt(50)

func testLogger() *slog.Logger {
	return util.NewLogger(io.Discard, "error")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// MockStatsService is a mock implementation of StatsService.
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

type fixture struct {
	store      *memtest.Store
	ledger     LedgerService
	stats      StatsService
	completion CompletionService
}

func newFixture(t *testing.T, now func() time.Time) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	store := memtest.NewStore()
	ledger := NewLedgerService(nil, memtest.Executor{}, store.Users(), store.Transactions(), store.Withdrawals(),
		testFloor, store.BeginTx, store.CommitTx, store.RollbackTx, testLogger())
	stats := NewStatsService(nil, store.Users(), store.Completions(), store.Transactions(), store.Stats(),
		StatsConfig{Location: loc, WeeklyGoal: 5, MonthlyGoal: 20, Now: now},
		store.BeginTx, store.CommitTx, store.RollbackTx, testLogger())
	completion := NewCompletionService(nil, store.Users(), store.Contents(), store.Completions(), ledger, stats,
		60, store.BeginTx, store.CommitTx, store.RollbackTx, testLogger())

	return &fixture{store: store, ledger: ledger, stats: stats, completion: completion}
}

// requireBalanceInvariant checks that the stored balance equals the sum of the
// log and the balance_after of the newest entry.
func requireBalanceInvariant(t *testing.T, store *memtest.Store, userID int64) {
	t.Helper()
	user := store.User(userID)
	sum := decimal.Zero
	entries := store.TransactionsOf(userID)
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	require.True(t, user.Balance.Equal(sum), "balance %s != log sum %s", user.Balance, sum)
	if len(entries) > 0 {
		require.True(t, user.Balance.Equal(entries[len(entries)-1].BalanceAfter))
	}
}

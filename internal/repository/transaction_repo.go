// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"readreward/internal/domain"
)

// LedgerTotals is the aggregate of a user's transaction log.
type LedgerTotals struct {
	Sum     decimal.Decimal `db:"total"`
	Entries int64           `db:"entries"`
}

// TransactionRepository defines the interface for transaction log operations.
type TransactionRepository interface {
	// CreateTransaction appends a ledger entry using the provided DBExecutor.
	CreateTransaction(ctx context.Context, q DBExecutor, tx *domain.Transaction) error
	// GetTransactionsByUserID returns a page of entries, newest first, and the total count.
	GetTransactionsByUserID(ctx context.Context, q DBExecutor, userID int64, limit, offset int) ([]domain.Transaction, int64, error)
	// GetLatestByUserID returns the newest entry or util.ErrNotFound.
	GetLatestByUserID(ctx context.Context, q DBExecutor, userID int64) (*domain.Transaction, error)
	SumByUserID(ctx context.Context, q DBExecutor, userID int64) (*LedgerTotals, error)
	SumEarningsSince(ctx context.Context, q DBExecutor, userID int64, since time.Time) (decimal.Decimal, error)
}

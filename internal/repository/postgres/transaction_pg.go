// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/internal/util"
)

const transactionColumns = `id, user_id, kind, amount, balance_before, balance_after, reference_id, created_at`

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a new ledger entry using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (user_id, kind, amount, balance_before, balance_after, reference_id, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := q.QueryRowContext(ctx, query,
		transaction.UserID,
		transaction.Kind,
		transaction.Amount,
		transaction.BalanceBefore,
		transaction.BalanceAfter,
		transaction.ReferenceID,
		transaction.CreatedAt,
	).Scan(&transaction.ID)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionsByUserID retrieves a paginated list of ledger entries for a user.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) GetTransactionsByUserID(ctx context.Context, q repository.DBExecutor, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	transactions := []domain.Transaction{}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`
	err := q.SelectContext(ctx, &transactions, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for user %d: %w", userID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE user_id = $1`
	err = q.GetContext(ctx, &totalCount, countQuery, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for user %d: %w", userID, err)
	}

	return transactions, totalCount, nil
}

// GetLatestByUserID returns the most recent ledger entry of a user.
func (r *TransactionRepository) GetLatestByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Transaction, error) {
	var transaction domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY id DESC LIMIT 1`
	if err := q.GetContext(ctx, &transaction, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest transaction for user %d: %w", userID, err)
	}
	return &transaction, nil
}

// SumByUserID folds the whole log of a user into a signed sum and entry count.
func (r *TransactionRepository) SumByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*repository.LedgerTotals, error) {
	var totals repository.LedgerTotals
	query := `SELECT COALESCE(SUM(amount), 0) AS total, COUNT(*) AS entries FROM transactions WHERE user_id = $1`
	if err := q.GetContext(ctx, &totals, query, userID); err != nil {
		return nil, fmt.Errorf("failed to sum transactions for user %d: %w", userID, err)
	}
	return &totals, nil
}

// SumEarningsSince sums earning entries created at or after since.
func (r *TransactionRepository) SumEarningsSince(ctx context.Context, q repository.DBExecutor, userID int64, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1 AND kind = $2 AND created_at >= $3`
	if err := q.GetContext(ctx, &total, query, userID, domain.TransactionKindEarning, since); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum earnings for user %d: %w", userID, err)
	}
	return total, nil
}

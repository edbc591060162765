// internal/repository/postgres/withdrawal_pg.go
package postgres

import (
	"context"
	"fmt"

	"readreward/internal/domain"
	"readreward/internal/repository"
)

// WithdrawalRepository implements repository.WithdrawalRepository for PostgreSQL.
type WithdrawalRepository struct{}

// NewWithdrawalRepository creates a new WithdrawalRepository.
func NewWithdrawalRepository() repository.WithdrawalRepository {
	return &WithdrawalRepository{}
}

// CreateWithdrawal records a payout request.
func (r *WithdrawalRepository) CreateWithdrawal(ctx context.Context, q repository.DBExecutor, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (id, user_id, amount, pix_key, status, created_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := q.ExecContext(ctx, query, w.ID, w.UserID, w.Amount, w.PixKey, w.Status, w.CreatedAt); err != nil {
		return fmt.Errorf("failed to create withdrawal for user %d: %w", w.UserID, err)
	}
	return nil
}

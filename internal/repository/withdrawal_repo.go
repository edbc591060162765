// internal/repository/withdrawal_repo.go
package repository

import (
	"context"

	"readreward/internal/domain"
)

// WithdrawalRepository records payout requests referenced by debit entries.
type WithdrawalRepository interface {
	CreateWithdrawal(ctx context.Context, q DBExecutor, w *domain.Withdrawal) error
}

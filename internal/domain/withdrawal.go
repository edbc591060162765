// internal/domain/withdrawal.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus tracks a payout request. Only requested is produced here.
type WithdrawalStatus string

const WithdrawalStatusRequested WithdrawalStatus = "requested"

// Withdrawal is the request a debit ledger entry references.
type Withdrawal struct {
	ID        string           `db:"id" json:"id"`
	UserID    int64            `db:"user_id" json:"user_id"`
	Amount    decimal.Decimal  `db:"amount" json:"amount"`
	PixKey    string           `db:"pix_key" json:"pix_key"`
	Status    WithdrawalStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NewWithdrawal creates a withdrawal request with a fresh id.
func NewWithdrawal(userID int64, amount decimal.Decimal, pixKey string) *Withdrawal {
	return &Withdrawal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		PixKey:    pixKey,
		Status:    WithdrawalStatusRequested,
		CreatedAt: time.Now().UTC(),
	}
}

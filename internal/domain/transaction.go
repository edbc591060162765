// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// TransactionKind defines the type of a ledger entry.
type TransactionKind string

const (
	TransactionKindEarning    TransactionKind = "earning"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
)

// Transaction is an append-only ledger entry. Amount is signed by kind:
// positive for earnings, negative for withdrawals. BalanceAfter of a user's
// latest entry equals the user's balance.
type Transaction struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"user_id"`
	Kind          TransactionKind `db:"kind" json:"kind"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	ReferenceID   string          `db:"reference_id" json:"reference_id"` // completion id or withdrawal id
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// NewTransaction creates a new ledger entry.
func NewTransaction(userID int64, kind TransactionKind, amount, before, after decimal.Decimal, referenceID string) *Transaction {
	return &Transaction{
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		ReferenceID:   referenceID,
		CreatedAt:     time.Now().UTC(),
	}
}

// SignedAmount returns amount with the sign implied by kind.
func SignedAmount(kind TransactionKind, amount decimal.Decimal) decimal.Decimal {
	if kind == TransactionKindWithdrawal {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

// LedgerResult is the outcome of a single credit or debit.
type LedgerResult struct {
	User        *User        `json:"user"`
	Transaction *Transaction `json:"transaction"`
}

// BalanceReport compares the stored balance against the transaction log.
type BalanceReport struct {
	UserID             int64           `json:"user_id"`
	StoredBalance      decimal.Decimal `json:"stored_balance"`
	ComputedBalance    decimal.Decimal `json:"computed_balance"`
	LatestBalanceAfter decimal.Decimal `json:"latest_balance_after"`
	EntryCount         int64           `json:"entry_count"`
	Consistent         bool            `json:"consistent"`
}

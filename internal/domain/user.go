// internal/domain/user.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Plan is the subscription tier of a user.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPaid Plan = "paid"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPaid
}

// User represents a reader. Balance and plan are only mutated by the ledger and
// the reconciliation engine.
type User struct {
	ID            int64           `db:"id" json:"id"`                         // Primary key, BIGSERIAL in DB
	Username      string          `db:"username" json:"username"`             // Unique username
	Balance       decimal.Decimal `db:"balance" json:"balance"`               // NUMERIC(20, 2), never negative
	TotalEarnings decimal.Decimal `db:"total_earnings" json:"total_earnings"` // Monotonically non-decreasing
	CanWithdraw   bool            `db:"can_withdraw" json:"can_withdraw"`     // Balance >= withdrawal floor
	Plan          Plan            `db:"plan" json:"plan"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// NewUser creates a new User instance on the free plan with an empty balance.
func NewUser(username string) *User {
	now := time.Now().UTC()
	return &User{
		Username:      username,
		Balance:       decimal.Zero,
		TotalEarnings: decimal.Zero,
		Plan:          PlanFree,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanWithdrawWith reports whether balance reaches the withdrawal floor.
func CanWithdrawWith(balance, floor decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(floor)
}

// internal/domain/payment.go
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the internal state of a payment order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is accepted from s.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s.IsTerminal()
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to PaymentStatus) bool {
	return from == PaymentStatusPending && to.IsTerminal()
}

// PaymentOrder tracks an outstanding plan purchase at the payment provider.
type PaymentOrder struct {
	ID                int64           `db:"id" json:"id"`
	ExternalID        string          `db:"external_id" json:"external_id"`
	InternalReference string          `db:"internal_reference" json:"internal_reference"`
	UserID            int64           `db:"user_id" json:"user_id"`
	Plan              Plan            `db:"plan" json:"plan"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Status            PaymentStatus   `db:"status" json:"status"`
	Payload           string          `db:"payload" json:"payload"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Customer is the payer of a checkout.
type Customer struct {
	UserID     int64
	Name       string
	Email      string
	NationalID string
}

// CheckoutResult is handed back to the client after an order is created.
type CheckoutResult struct {
	ExternalID string          `json:"external_id"`
	Amount     decimal.Decimal `json:"amount"`
	Payload    string          `json:"payload"`
	Status     PaymentStatus   `json:"status"`
}

const referencePrefix = "rr"

// BuildInternalReference embeds the user, plan and a millisecond timestamp so a
// provider notification can be mapped back to its user without a lookup table.
func BuildInternalReference(userID int64, plan Plan, at time.Time) string {
	return fmt.Sprintf("%s.%d.%s.%d", referencePrefix, userID, plan, at.UnixMilli())
}

// ParseInternalReference is the inverse of BuildInternalReference.
func ParseInternalReference(ref string) (userID int64, plan Plan, at time.Time, err error) {
	parts := strings.Split(ref, ".")
	if len(parts) != 4 || parts[0] != referencePrefix {
		return 0, "", time.Time{}, fmt.Errorf("malformed internal reference %q", ref)
	}
	userID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", time.Time{}, fmt.Errorf("malformed user id in reference %q", ref)
	}
	plan = Plan(parts[2])
	if !plan.Valid() {
		return 0, "", time.Time{}, fmt.Errorf("unknown plan in reference %q", ref)
	}
	ms, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("malformed timestamp in reference %q", ref)
	}
	return userID, plan, time.UnixMilli(ms).UTC(), nil
}

// ReconcileSource names the channel a status observation arrived through.
type ReconcileSource string

const (
	SourceWebhook ReconcileSource = "webhook"
	SourcePoll    ReconcileSource = "poll"
	SourceSweep   ReconcileSource = "sweep"
)

// ReconcileOutcome describes what applying a status observation did.
type ReconcileOutcome string

const (
	OutcomeUpgraded  ReconcileOutcome = "upgraded"  // pending -> paid, plan changed
	OutcomePaidNoop  ReconcileOutcome = "paid_noop" // pending -> paid, plan already at target
	OutcomeFailed    ReconcileOutcome = "failed"    // pending -> failed
	OutcomeDuplicate ReconcileOutcome = "duplicate" // terminal status observed again
	OutcomePending   ReconcileOutcome = "pending"   // nothing to do yet
	OutcomeConflict  ReconcileOutcome = "conflict"  // a different terminal status was observed
	OutcomeRejected  ReconcileOutcome = "rejected"  // notification did not match the stored order
)

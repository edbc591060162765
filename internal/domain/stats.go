// internal/domain/stats.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatsSnapshot is a cached, re-derivable view over a user's completions and
// earnings. It is never authoritative.
type StatsSnapshot struct {
	UserID           int64           `db:"user_id" json:"user_id"`
	TodayCount       int             `db:"today_count" json:"today_count"`
	TodayEarnings    decimal.Decimal `db:"today_earnings" json:"today_earnings"`
	WeekCount        int             `db:"week_count" json:"week_count"`
	WeekEarnings     decimal.Decimal `db:"week_earnings" json:"week_earnings"`
	MonthCount       int             `db:"month_count" json:"month_count"`
	MonthEarnings    decimal.Decimal `db:"month_earnings" json:"month_earnings"`
	TotalCount       int             `db:"total_count" json:"total_count"`
	AverageRating    decimal.Decimal `db:"average_rating" json:"average_rating"`
	CurrentStreak    int             `db:"current_streak" json:"current_streak"`
	BestStreak       int             `db:"best_streak" json:"best_streak"`
	LastActiveDay    *time.Time      `db:"last_active_day" json:"last_active_day,omitempty"`
	LastCompletionID int64           `db:"last_completion_id" json:"-"`
	WeeklyProgress   decimal.Decimal `db:"weekly_progress" json:"weekly_progress"`   // percent of weekly goal, capped at 100
	MonthlyProgress  decimal.Decimal `db:"monthly_progress" json:"monthly_progress"` // percent of monthly goal, capped at 100
	AsOf             time.Time       `db:"as_of" json:"as_of"`
}

// NewStatsSnapshot returns an empty snapshot anchored at asOf.
func NewStatsSnapshot(userID int64, asOf time.Time) *StatsSnapshot {
	return &StatsSnapshot{
		UserID:          userID,
		TodayEarnings:   decimal.Zero,
		WeekEarnings:    decimal.Zero,
		MonthEarnings:   decimal.Zero,
		AverageRating:   decimal.Zero,
		WeeklyProgress:  decimal.Zero,
		MonthlyProgress: decimal.Zero,
		AsOf:            asOf,
	}
}

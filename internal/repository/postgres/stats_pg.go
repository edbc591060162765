// internal/repository/postgres/stats_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/internal/util"
)

// StatsRepository implements repository.StatsRepository for PostgreSQL.
type StatsRepository struct{}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository() repository.StatsRepository {
	return &StatsRepository{}
}

// GetStats loads the cached snapshot of a user.
func (r *StatsRepository) GetStats(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.StatsSnapshot, error) {
	var s domain.StatsSnapshot
	query := `SELECT user_id, today_count, today_earnings, week_count, week_earnings, month_count, month_earnings,
                     total_count, average_rating, current_streak, best_streak, last_active_day, last_completion_id,
                     weekly_progress, monthly_progress, as_of
              FROM user_stats WHERE user_id = $1`
	if err := q.GetContext(ctx, &s, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get stats for user %d: %w", userID, err)
	}
	return &s, nil
}

// UpsertStats replaces the cached snapshot of a user.
func (r *StatsRepository) UpsertStats(ctx context.Context, q repository.DBExecutor, s *domain.StatsSnapshot) error {
	query := `INSERT INTO user_stats (user_id, today_count, today_earnings, week_count, week_earnings, month_count, month_earnings,
                                      total_count, average_rating, current_streak, best_streak, last_active_day, last_completion_id,
                                      weekly_progress, monthly_progress, as_of)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
              ON CONFLICT (user_id) DO UPDATE SET
                  today_count = EXCLUDED.today_count,
                  today_earnings = EXCLUDED.today_earnings,
                  week_count = EXCLUDED.week_count,
                  week_earnings = EXCLUDED.week_earnings,
                  month_count = EXCLUDED.month_count,
                  month_earnings = EXCLUDED.month_earnings,
                  total_count = EXCLUDED.total_count,
                  average_rating = EXCLUDED.average_rating,
                  current_streak = EXCLUDED.current_streak,
                  best_streak = EXCLUDED.best_streak,
                  last_active_day = EXCLUDED.last_active_day,
                  last_completion_id = EXCLUDED.last_completion_id,
                  weekly_progress = EXCLUDED.weekly_progress,
                  monthly_progress = EXCLUDED.monthly_progress,
                  as_of = EXCLUDED.as_of`
	_, err := q.ExecContext(ctx, query,
		s.UserID, s.TodayCount, s.TodayEarnings, s.WeekCount, s.WeekEarnings, s.MonthCount, s.MonthEarnings,
		s.TotalCount, s.AverageRating, s.CurrentStreak, s.BestStreak, s.LastActiveDay, s.LastCompletionID,
		s.WeeklyProgress, s.MonthlyProgress, s.AsOf,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stats for user %d: %w", s.UserID, err)
	}
	return nil
}

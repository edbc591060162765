// internal/service/stats_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/internal/util"
	"readreward/pkg/db"
)

var hundred = decimal.NewFromInt(100)

// StatsService maintains the cached per-user aggregates.
type StatsService interface {
	// Refresh folds completions newer than the snapshot into it, creating the
	// snapshot when missing and falling back to Recompute on drift.
	Refresh(ctx context.Context, userID int64) (*domain.StatsSnapshot, error)
	// Recompute rebuilds the snapshot from the completion and transaction logs.
	Recompute(ctx context.Context, userID int64) (*domain.StatsSnapshot, error)
}

// StatsConfig holds window and goal settings for the aggregator.
type StatsConfig struct {
	Location    *time.Location
	WeeklyGoal  int // completions per calendar week
	MonthlyGoal int // completions per calendar month
	Now         func() time.Time
}

type statsService struct {
	dbBeginner      db.DBTxBeginner
	userRepo        repository.UserRepository
	completionRepo  repository.CompletionRepository
	transactionRepo repository.TransactionRepository
	statsRepo       repository.StatsRepository
	cfg             StatsConfig
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	logger          *slog.Logger
}

// NewStatsService creates a new instance of StatsService.
func NewStatsService(
	dbBeginner db.DBTxBeginner,
	userRepo repository.UserRepository,
	completionRepo repository.CompletionRepository,
	transactionRepo repository.TransactionRepository,
	statsRepo repository.StatsRepository,
	cfg StatsConfig,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) StatsService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &statsService{
		dbBeginner:      dbBeginner,
		userRepo:        userRepo,
		completionRepo:  completionRepo,
		transactionRepo: transactionRepo,
		statsRepo:       statsRepo,
		cfg:             cfg,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		logger:          logger,
	}
}

func (s *statsService) Refresh(ctx context.Context, userID int64) (*domain.StatsSnapshot, error) {
	return s.inTx(ctx, "refresh stats", userID, s.refreshTx)
}

func (s *statsService) Recompute(ctx context.Context, userID int64) (*domain.StatsSnapshot, error) {
	return s.inTx(ctx, "recompute stats", userID, s.recomputeTx)
}

// inTx serialises stats writers of one user on the user row lock.
func (s *statsService) inTx(ctx context.Context, op string, userID int64, fn func(context.Context, repository.DBExecutor, int64) (*domain.StatsSnapshot, error)) (*domain.StatsSnapshot, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("%s: transaction controller does not implement DBExecutor", op)
	}

	if _, err := s.userRepo.GetUserForUpdate(ctx, txExecutor, userID); err != nil {
		return nil, fmt.Errorf("%s: failed to lock user %d: %w", op, userID, err)
	}

	snapshot, err := fn(ctx, txExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return snapshot, nil
}

func (s *statsService) refreshTx(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.StatsSnapshot, error) {
	snapshot, err := s.statsRepo.GetStats(ctx, q, userID)
	if errors.Is(err, util.ErrNotFound) {
		s.logger.InfoContext(ctx, "stats snapshot missing, recomputing", "user_id", userID)
		return s.recomputeTx(ctx, q, userID)
	}
	if err != nil {
		return nil, err
	}

	now := s.cfg.Now().In(s.cfg.Location)
	w := s.windowsAt(now)
	s.rollover(snapshot, w)

	fresh, err := s.completionRepo.ListByUserAfterID(ctx, q, userID, snapshot.LastCompletionID)
	if err != nil {
		return nil, err
	}
	for i := range fresh {
		s.fold(snapshot, &fresh[i], w)
	}

	count, err := s.completionRepo.CountByUser(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	if count != snapshot.TotalCount {
		s.logger.WarnContext(ctx, "stats snapshot drifted, recomputing",
			"user_id", userID,
			"snapshot_count", snapshot.TotalCount,
			"completion_count", count,
		)
		return s.recomputeTx(ctx, q, userID)
	}

	s.finish(snapshot, now, w)
	if err := s.statsRepo.UpsertStats(ctx, q, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *statsService) recomputeTx(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.StatsSnapshot, error) {
	now := s.cfg.Now().In(s.cfg.Location)
	w := s.windowsAt(now)
	snapshot := domain.NewStatsSnapshot(userID, now)

	completions, err := s.completionRepo.ListByUser(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	for i := range completions {
		s.fold(snapshot, &completions[i], w)
	}

	// Window earnings come from the transaction log, which is the money source of truth.
	if snapshot.TodayEarnings, err = s.transactionRepo.SumEarningsSince(ctx, q, userID, w.day); err != nil {
		return nil, err
	}
	if snapshot.WeekEarnings, err = s.transactionRepo.SumEarningsSince(ctx, q, userID, w.week); err != nil {
		return nil, err
	}
	if snapshot.MonthEarnings, err = s.transactionRepo.SumEarningsSince(ctx, q, userID, w.month); err != nil {
		return nil, err
	}

	s.finish(snapshot, now, w)
	if err := s.statsRepo.UpsertStats(ctx, q, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

type windows struct {
	day   time.Time
	week  time.Time
	month time.Time
}

// windowsAt returns local midnight, the Monday of the current week and the
// first day of the current month.
func (s *statsService) windowsAt(t time.Time) windows {
	t = t.In(s.cfg.Location)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.cfg.Location)
	offset := (int(day.Weekday()) + 6) % 7
	return windows{
		day:   day,
		week:  day.AddDate(0, 0, -offset),
		month: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, s.cfg.Location),
	}
}

func (s *statsService) localDay(t time.Time) time.Time {
	t = t.In(s.cfg.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.cfg.Location)
}

// rollover clears windows that ended since the snapshot was taken.
func (s *statsService) rollover(snapshot *domain.StatsSnapshot, w windows) {
	prev := s.windowsAt(snapshot.AsOf)
	if !prev.day.Equal(w.day) {
		snapshot.TodayCount = 0
		snapshot.TodayEarnings = decimal.Zero
	}
	if !prev.week.Equal(w.week) {
		snapshot.WeekCount = 0
		snapshot.WeekEarnings = decimal.Zero
	}
	if !prev.month.Equal(w.month) {
		snapshot.MonthCount = 0
		snapshot.MonthEarnings = decimal.Zero
	}
}

func (s *statsService) fold(snapshot *domain.StatsSnapshot, c *domain.Completion, w windows) {
	if c.ID <= snapshot.LastCompletionID {
		return
	}
	snapshot.LastCompletionID = c.ID

	n := decimal.NewFromInt(int64(snapshot.TotalCount))
	snapshot.TotalCount++
	snapshot.AverageRating = snapshot.AverageRating.Mul(n).
		Add(decimal.NewFromInt(int64(c.Rating))).
		DivRound(decimal.NewFromInt(int64(snapshot.TotalCount)), 4)

	if !c.CreatedAt.Before(w.month) {
		snapshot.MonthCount++
		snapshot.MonthEarnings = snapshot.MonthEarnings.Add(c.Reward)
	}
	if !c.CreatedAt.Before(w.week) {
		snapshot.WeekCount++
		snapshot.WeekEarnings = snapshot.WeekEarnings.Add(c.Reward)
	}
	if !c.CreatedAt.Before(w.day) {
		snapshot.TodayCount++
		snapshot.TodayEarnings = snapshot.TodayEarnings.Add(c.Reward)
	}

	day := s.localDay(c.CreatedAt)
	switch {
	case snapshot.LastActiveDay == nil:
		snapshot.CurrentStreak = 1
	case day.Equal(*snapshot.LastActiveDay):
		if snapshot.CurrentStreak == 0 {
			snapshot.CurrentStreak = 1
		}
	case day.Equal(snapshot.LastActiveDay.AddDate(0, 0, 1)):
		snapshot.CurrentStreak++
	case day.After(*snapshot.LastActiveDay):
		snapshot.CurrentStreak = 1
	default:
		return
	}
	snapshot.LastActiveDay = &day
	if snapshot.CurrentStreak > snapshot.BestStreak {
		snapshot.BestStreak = snapshot.CurrentStreak
	}
}

// finish stamps the snapshot and derives the fields that depend on "now".
func (s *statsService) finish(snapshot *domain.StatsSnapshot, now time.Time, w windows) {
	snapshot.AsOf = now
	if snapshot.LastActiveDay != nil && snapshot.LastActiveDay.Before(w.day.AddDate(0, 0, -1)) {
		snapshot.CurrentStreak = 0
	}
	snapshot.WeeklyProgress = progress(snapshot.WeekCount, s.cfg.WeeklyGoal)
	snapshot.MonthlyProgress = progress(snapshot.MonthCount, s.cfg.MonthlyGoal)
}

func progress(count, goal int) decimal.Decimal {
	if goal <= 0 {
		return decimal.Zero
	}
	p := decimal.NewFromInt(int64(count)).Mul(hundred).DivRound(decimal.NewFromInt(int64(goal)), 2)
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

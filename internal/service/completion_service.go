// internal/service/completion_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"readreward/internal/auth"
	"readreward/internal/domain"
	"readreward/internal/metrics"
	"readreward/internal/repository"
	"readreward/internal/util"
	"readreward/pkg/db"
)

// CompletionService rewards a reader at most once per content item.
type CompletionService interface {
	Complete(ctx context.Context, principal auth.Principal, contentID int64, report domain.ClientReport) (*domain.CompletionResult, error)
}

type completionService struct {
	dbBeginner     db.DBTxBeginner
	userRepo       repository.UserRepository
	contentRepo    repository.ContentRepository
	completionRepo repository.CompletionRepository
	ledger         LedgerService
	stats          StatsService
	minReadSeconds int
	beginTx        db.BeginTxFunc
	commitTx       db.CommitTxFunc
	rollbackTx     db.RollbackTxFunc
	logger         *slog.Logger
}

// NewCompletionService creates a new instance of CompletionService.
func NewCompletionService(
	dbBeginner db.DBTxBeginner,
	userRepo repository.UserRepository,
	contentRepo repository.ContentRepository,
	completionRepo repository.CompletionRepository,
	ledger LedgerService,
	stats StatsService,
	minReadSeconds int,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) CompletionService {
	return &completionService{
		dbBeginner:     dbBeginner,
		userRepo:       userRepo,
		contentRepo:    contentRepo,
		completionRepo: completionRepo,
		ledger:         ledger,
		stats:          stats,
		minReadSeconds: minReadSeconds,
		beginTx:        beginTx,
		commitTx:       commitTx,
		rollbackTx:     rollbackTx,
		logger:         logger,
	}
}

// Complete checks the pair, writes the completion and credits the reward in
// one transaction with the user row locked.
func (s *completionService) Complete(ctx context.Context, principal auth.Principal, contentID int64, report domain.ClientReport) (*domain.CompletionResult, error) {
	if !principal.Valid() {
		return nil, util.ErrUnauthorized
	}
	if contentID <= 0 || report.Rating < 0 || report.Rating > 5 || report.TimeSpent < 0 {
		return nil, util.ErrInvalidInput
	}
	userID := principal.UserID

	if report.TimeSpent < s.minReadSeconds {
		s.reject(ctx, userID, contentID, "invalid_engagement")
		return nil, util.ErrInvalidEngagement
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("complete: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("complete: transaction controller does not implement DBExecutor")
	}

	// Concurrent completions of the same user queue here.
	if _, err := s.userRepo.GetUserForUpdate(ctx, txExecutor, userID); err != nil {
		return nil, fmt.Errorf("complete: failed to lock user %d: %w", userID, err)
	}

	exists, err := s.completionRepo.ExistsForUserAndContent(ctx, txExecutor, userID, contentID)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	if exists {
		s.reject(ctx, userID, contentID, "already_completed")
		return nil, util.ErrAlreadyCompleted
	}

	content, err := s.contentRepo.GetContentByID(ctx, txExecutor, contentID)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	completion := domain.NewCompletion(userID, contentID, content.Reward, report)
	if err := s.completionRepo.CreateCompletion(ctx, txExecutor, completion); err != nil {
		if errors.Is(err, util.ErrAlreadyCompleted) {
			s.reject(ctx, userID, contentID, "already_completed")
			return nil, util.ErrAlreadyCompleted
		}
		return nil, fmt.Errorf("complete: %w", err)
	}

	credit, err := s.ledger.CreditTx(ctx, txExecutor, userID, content.Reward, domain.TransactionKindEarning, strconv.FormatInt(completion.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("complete: failed to commit transaction: %w", err)
	}
	metrics.RecordRewardCredited()

	s.logger.InfoContext(ctx, "reward credited",
		"user_id", userID,
		"content_id", contentID,
		"completion_id", completion.ID,
		"amount", content.Reward.StringFixed(2),
		"balance_before", credit.Transaction.BalanceBefore.StringFixed(2),
		"balance_after", credit.Transaction.BalanceAfter.StringFixed(2),
	)

	result := &domain.CompletionResult{
		CompletionID: completion.ID,
		Reward:       content.Reward,
		NewBalance:   credit.User.Balance,
	}

	// The credit is already committed; a stale snapshot is repaired on the next refresh.
	snapshot, err := s.stats.Refresh(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "stats refresh after completion failed", "user_id", userID, "error", err)
		return result, nil
	}
	result.Stats = snapshot
	return result, nil
}

func (s *completionService) reject(ctx context.Context, userID, contentID int64, reason string) {
	metrics.RecordCompletionRejected(reason)
	s.logger.InfoContext(ctx, "completion rejected", "user_id", userID, "content_id", contentID, "reason", reason)
}

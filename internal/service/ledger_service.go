// internal/service/ledger_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"readreward/internal/domain"
	"readreward/internal/metrics"
	"readreward/internal/repository"
	"readreward/internal/util"
	"readreward/pkg/db"
)

// LedgerService owns the balance of every user and the append-only log that
// explains it. It is the only writer of users.balance.
type LedgerService interface {
	// CreditTx credits amount inside the caller's transaction. The caller commits.
	CreditTx(ctx context.Context, q repository.DBExecutor, userID int64, amount decimal.Decimal, kind domain.TransactionKind, referenceID string) (*domain.LedgerResult, error)
	// Debit opens its own transaction, records a withdrawal request and debits it.
	Debit(ctx context.Context, userID int64, amount decimal.Decimal, pixKey string) (*domain.LedgerResult, *domain.Withdrawal, error)
	GetBalance(ctx context.Context, userID int64) (*domain.User, error)
	GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error)
	VerifyBalance(ctx context.Context, userID int64) (*domain.BalanceReport, error)
}

// ledgerService implements the LedgerService interface.
type ledgerService struct {
	dbBeginner      db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	userRepo        repository.UserRepository
	transactionRepo repository.TransactionRepository
	withdrawalRepo  repository.WithdrawalRepository
	withdrawalFloor decimal.Decimal
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	logger          *slog.Logger
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	transactionRepo repository.TransactionRepository,
	withdrawalRepo repository.WithdrawalRepository,
	withdrawalFloor decimal.Decimal,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) LedgerService {
	return &ledgerService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		withdrawalRepo:  withdrawalRepo,
		withdrawalFloor: withdrawalFloor,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		logger:          logger,
	}
}

// CreditTx locks the user row, moves the balance and appends the log entry.
func (s *ledgerService) CreditTx(ctx context.Context, q repository.DBExecutor, userID int64, amount decimal.Decimal, kind domain.TransactionKind, referenceID string) (*domain.LedgerResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) || kind != domain.TransactionKindEarning {
		return nil, util.ErrInvalidInput
	}

	user, err := s.userRepo.GetUserForUpdate(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("credit: failed to lock user %d: %w", userID, err)
	}

	before := user.Balance
	after := before.Add(amount)
	totalEarnings := user.TotalEarnings.Add(amount)
	canWithdraw := domain.CanWithdrawWith(after, s.withdrawalFloor)

	if err := s.userRepo.UpdateBalance(ctx, q, userID, after, totalEarnings, canWithdraw); err != nil {
		return nil, fmt.Errorf("credit: failed to update balance: %w", err)
	}

	entry := domain.NewTransaction(userID, kind, domain.SignedAmount(kind, amount), before, after, referenceID)
	if err := s.transactionRepo.CreateTransaction(ctx, q, entry); err != nil {
		return nil, fmt.Errorf("credit: failed to append transaction: %w", err)
	}

	user.Balance = after
	user.TotalEarnings = totalEarnings
	user.CanWithdraw = canWithdraw

	s.logger.InfoContext(ctx, "ledger credit staged",
		"user_id", userID,
		"amount", amount.StringFixed(2),
		"balance_before", before.StringFixed(2),
		"balance_after", after.StringFixed(2),
		"reference_id", referenceID,
	)
	return &domain.LedgerResult{User: user, Transaction: entry}, nil
}

// Debit withdraws amount from the user's balance.
func (s *ledgerService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, pixKey string) (*domain.LedgerResult, *domain.Withdrawal, error) {
	pixKey = strings.TrimSpace(pixKey)
	if amount.LessThanOrEqual(decimal.Zero) || pixKey == "" {
		metrics.RecordWithdrawal("invalid")
		return nil, nil, util.ErrInvalidInput
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("debit: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("debit: transaction controller does not implement DBExecutor")
	}

	user, err := s.userRepo.GetUserForUpdate(ctx, txExecutor, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("debit: failed to lock user %d: %w", userID, err)
	}

	before := user.Balance
	if !domain.CanWithdrawWith(before, s.withdrawalFloor) {
		s.rejectDebit(ctx, userID, amount, before, "withdrawal_not_allowed")
		return nil, nil, util.ErrWithdrawalNotAllowed
	}
	if amount.GreaterThan(before) {
		s.rejectDebit(ctx, userID, amount, before, "insufficient_balance")
		return nil, nil, util.ErrInsufficientBalance
	}

	after := before.Sub(amount)
	canWithdraw := domain.CanWithdrawWith(after, s.withdrawalFloor)

	withdrawal := domain.NewWithdrawal(userID, amount, pixKey)
	if err := s.withdrawalRepo.CreateWithdrawal(ctx, txExecutor, withdrawal); err != nil {
		return nil, nil, fmt.Errorf("debit: failed to record withdrawal: %w", err)
	}

	if err := s.userRepo.UpdateBalance(ctx, txExecutor, userID, after, user.TotalEarnings, canWithdraw); err != nil {
		return nil, nil, fmt.Errorf("debit: failed to update balance: %w", err)
	}

	entry := domain.NewTransaction(userID, domain.TransactionKindWithdrawal,
		domain.SignedAmount(domain.TransactionKindWithdrawal, amount), before, after, withdrawal.ID)
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, entry); err != nil {
		return nil, nil, fmt.Errorf("debit: failed to append transaction: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("debit: failed to commit transaction: %w", err)
	}

	user.Balance = after
	user.CanWithdraw = canWithdraw

	metrics.RecordWithdrawal("accepted")
	s.logger.InfoContext(ctx, "ledger debit committed",
		"user_id", userID,
		"amount", amount.StringFixed(2),
		"balance_before", before.StringFixed(2),
		"balance_after", after.StringFixed(2),
		"withdrawal_id", withdrawal.ID,
	)
	return &domain.LedgerResult{User: user, Transaction: entry}, withdrawal, nil
}

func (s *ledgerService) rejectDebit(ctx context.Context, userID int64, amount, balance decimal.Decimal, reason string) {
	metrics.RecordWithdrawal(reason)
	s.logger.WarnContext(ctx, "ledger debit rejected",
		"user_id", userID,
		"amount", amount.StringFixed(2),
		"balance_before", balance.StringFixed(2),
		"balance_after", balance.StringFixed(2),
		"reason", reason,
	)
}

func (s *ledgerService) GetBalance(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance: failed to get user %d: %w", userID, err)
	}
	return user, nil
}

// GetTransactionHistory retrieves a paginated list of ledger entries for a user.
func (s *ledgerService) GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	if _, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, userID); err != nil {
		if util.IsError(err, util.ErrUserNotFound) {
			return nil, 0, util.ErrUserNotFound
		}
		return nil, 0, fmt.Errorf("failed to check user existence: %w", err)
	}

	transactions, totalCount, err := s.transactionRepo.GetTransactionsByUserID(ctx, s.dbExecutor, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	return transactions, totalCount, nil
}

// VerifyBalance recomputes the balance from the log and compares it with the
// stored one. The user row is locked so no ledger write interleaves with
// the reads.
func (s *ledgerService) VerifyBalance(ctx context.Context, userID int64) (*domain.BalanceReport, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("verify balance: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("verify balance: transaction controller does not implement DBExecutor")
	}

	user, err := s.userRepo.GetUserForUpdate(ctx, txExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("verify balance: failed to get user %d: %w", userID, err)
	}

	totals, err := s.transactionRepo.SumByUserID(ctx, txExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("verify balance: %w", err)
	}

	latestAfter := decimal.Zero
	latest, err := s.transactionRepo.GetLatestByUserID(ctx, txExecutor, userID)
	switch {
	case err == nil:
		latestAfter = latest.BalanceAfter
	case errors.Is(err, util.ErrNotFound):
	default:
		return nil, fmt.Errorf("verify balance: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("verify balance: failed to commit transaction: %w", err)
	}

	report := &domain.BalanceReport{
		UserID:             userID,
		StoredBalance:      user.Balance,
		ComputedBalance:    totals.Sum,
		LatestBalanceAfter: latestAfter,
		EntryCount:         totals.Entries,
	}
	report.Consistent = report.StoredBalance.Equal(report.ComputedBalance) &&
		report.StoredBalance.Equal(report.LatestBalanceAfter)

	if !report.Consistent {
		s.logger.ErrorContext(ctx, "ledger drift detected",
			"user_id", userID,
			"stored_balance", report.StoredBalance.StringFixed(2),
			"computed_balance", report.ComputedBalance.StringFixed(2),
			"latest_balance_after", report.LatestBalanceAfter.StringFixed(2),
			"entries", report.EntryCount,
		)
	}
	return report, nil
}

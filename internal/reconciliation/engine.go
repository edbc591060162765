// internal/reconciliation/engine.go
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"readreward/internal/auth"
	"readreward/internal/domain"
	"readreward/internal/metrics"
	"readreward/internal/payment"
	"readreward/internal/repository"
	"readreward/internal/util"
	"readreward/pkg/db"
)

// Notification is the provider's push callback body.
type Notification struct {
	ExternalID        string          `json:"externalId"`
	InternalReference string          `json:"internalReference"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	ReceivedAt        time.Time       `json:"receivedAt"`
	Tries             int             `json:"tries"`
}

// Engine is the only writer of payment order status. It turns a confirmed
// payment into a plan upgrade exactly once, whichever channel reports it
// first and however often it is reported.
type Engine struct {
	dbBeginner db.DBTxBeginner
	dbExecutor repository.DBExecutor
	orderRepo  repository.PaymentOrderRepository
	userRepo   repository.UserRepository
	provider   payment.Provider
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
	logger     *slog.Logger
}

// NewEngine creates a new reconciliation Engine.
func NewEngine(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	orderRepo repository.PaymentOrderRepository,
	userRepo repository.UserRepository,
	provider payment.Provider,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		orderRepo:  orderRepo,
		userRepo:   userRepo,
		provider:   provider,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
		logger:     logger,
	}
}

// ApplyStatus moves a pending order to a terminal status and, on paid,
// upgrades the user's plan unless it is already there. The order row and
// then the user row are locked for the whole transaction.
func (e *Engine) ApplyStatus(ctx context.Context, externalID string, status domain.PaymentStatus, source domain.ReconcileSource) (domain.ReconcileOutcome, error) {
	if externalID == "" || !status.Valid() {
		return "", util.ErrInvalidInput
	}

	outcome, order, err := e.applyStatus(ctx, externalID, status)
	if err != nil && !errors.Is(err, util.ErrReconciliationConflict) {
		return "", err
	}
	metrics.RecordReconciliation(string(source), string(outcome))

	attrs := []any{
		"external_id", externalID,
		"source", source,
		"observed_status", status,
		"outcome", outcome,
	}
	if order != nil {
		attrs = append(attrs, "user_id", order.UserID, "order_status", order.Status)
	}
	switch outcome {
	case domain.OutcomeConflict:
		e.logger.ErrorContext(ctx, "payment status conflict", attrs...)
	case domain.OutcomePending, domain.OutcomeDuplicate:
		e.logger.DebugContext(ctx, "payment status applied", attrs...)
	default:
		e.logger.InfoContext(ctx, "payment status applied", attrs...)
	}
	return outcome, err
}

func (e *Engine) applyStatus(ctx context.Context, externalID string, status domain.PaymentStatus) (domain.ReconcileOutcome, *domain.PaymentOrder, error) {
	txController, err := e.beginTx(ctx, e.dbBeginner)
	if err != nil {
		return "", nil, fmt.Errorf("apply status: failed to begin transaction: %w", err)
	}
	defer e.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return "", nil, fmt.Errorf("apply status: transaction controller does not implement DBExecutor")
	}

	order, err := e.orderRepo.GetByExternalIDForUpdate(ctx, txExecutor, externalID)
	if err != nil {
		return "", nil, fmt.Errorf("apply status: %w", err)
	}

	if order.Status.IsTerminal() {
		if order.Status == status {
			return domain.OutcomeDuplicate, order, nil
		}
		if status == domain.PaymentStatusPending {
			return domain.OutcomeDuplicate, order, nil
		}
		return domain.OutcomeConflict, order, fmt.Errorf("%w: order %s is %s, observed %s",
			util.ErrReconciliationConflict, externalID, order.Status, status)
	}
	if !domain.CanTransition(order.Status, status) {
		return domain.OutcomePending, order, nil
	}

	moved, err := e.orderRepo.TransitionStatus(ctx, txExecutor, order.ID, order.Status, status)
	if err != nil {
		return "", nil, fmt.Errorf("apply status: %w", err)
	}
	if !moved {
		return domain.OutcomeDuplicate, order, nil
	}
	order.Status = status

	outcome := domain.OutcomeFailed
	if status == domain.PaymentStatusPaid {
		if _, err := e.userRepo.GetUserForUpdate(ctx, txExecutor, order.UserID); err != nil {
			return "", nil, fmt.Errorf("apply status: failed to lock user %d: %w", order.UserID, err)
		}
		upgraded, err := e.userRepo.UpgradePlan(ctx, txExecutor, order.UserID, order.Plan)
		if err != nil {
			return "", nil, fmt.Errorf("apply status: %w", err)
		}
		outcome = domain.OutcomePaidNoop
		if upgraded {
			outcome = domain.OutcomeUpgraded
		}
	}

	if err := e.commitTx(txController); err != nil {
		return "", nil, fmt.Errorf("apply status: failed to commit transaction: %w", err)
	}
	return outcome, order, nil
}

// ApplyNotification cross-checks a push callback against the stored order and
// then confirms the order with the provider. The callback's own status is
// never applied; it only triggers a check.
func (e *Engine) ApplyNotification(ctx context.Context, n Notification) (domain.ReconcileOutcome, error) {
	reported, err := payment.NormalizeStatus(n.Status)
	if err != nil {
		metrics.RecordReconciliation(string(domain.SourceWebhook), string(domain.OutcomeRejected))
		return domain.OutcomeRejected, fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}

	order, err := e.orderRepo.GetByExternalID(ctx, e.dbExecutor, n.ExternalID)
	if err != nil {
		return "", fmt.Errorf("apply notification: %w", err)
	}

	if n.InternalReference != "" {
		if _, _, _, err := domain.ParseInternalReference(n.InternalReference); err != nil {
			return e.rejectNotification(ctx, n, "malformed internal reference")
		}
		if n.InternalReference != order.InternalReference {
			return e.rejectNotification(ctx, n, "internal reference mismatch")
		}
	}
	if !n.Amount.IsZero() && !n.Amount.Equal(order.Amount) {
		return e.rejectNotification(ctx, n, "amount mismatch")
	}

	confirmed, outcome, err := e.Check(ctx, n.ExternalID, domain.SourceWebhook)
	if err != nil {
		return outcome, fmt.Errorf("apply notification: %w", err)
	}
	if confirmed != reported {
		e.logger.WarnContext(ctx, "payment notification disagrees with provider",
			"external_id", n.ExternalID,
			"reported_status", reported,
			"confirmed_status", confirmed,
		)
	}
	return outcome, nil
}

func (e *Engine) rejectNotification(ctx context.Context, n Notification, reason string) (domain.ReconcileOutcome, error) {
	metrics.RecordReconciliation(string(domain.SourceWebhook), string(domain.OutcomeRejected))
	e.logger.WarnContext(ctx, "payment notification ignored",
		"external_id", n.ExternalID,
		"internal_reference", n.InternalReference,
		"amount", n.Amount.StringFixed(2),
		"reason", reason,
	)
	return domain.OutcomeRejected, fmt.Errorf("%w: %s", util.ErrInvalidInput, reason)
}

// Check asks the provider for the current status of an order and applies it.
func (e *Engine) Check(ctx context.Context, externalID string, source domain.ReconcileSource) (domain.PaymentStatus, domain.ReconcileOutcome, error) {
	charge, err := e.provider.GetCharge(ctx, externalID)
	if err != nil {
		return "", "", err
	}
	if charge.ID != externalID {
		e.logger.ErrorContext(ctx, "provider returned a different charge", "external_id", externalID, "charge_id", charge.ID)
		return "", "", fmt.Errorf("%w: charge %q returned for %q", util.ErrPaymentProvider, charge.ID, externalID)
	}
	status, err := payment.NormalizeStatus(charge.Status)
	if err != nil {
		return "", "", err
	}
	outcome, err := e.ApplyStatus(ctx, externalID, status, source)
	return status, outcome, err
}

// OrderStatus returns the caller's order. A pending order is checked with the
// provider first, so a client polling this endpoint drives reconciliation too.
func (e *Engine) OrderStatus(ctx context.Context, principal auth.Principal, externalID string) (*domain.PaymentOrder, error) {
	if !principal.Valid() {
		return nil, util.ErrUnauthorized
	}
	order, err := e.orderRepo.GetByExternalID(ctx, e.dbExecutor, externalID)
	if err != nil {
		return nil, err
	}
	if order.UserID != principal.UserID {
		return nil, util.ErrForbidden
	}
	if order.Status.IsTerminal() {
		return order, nil
	}

	if _, _, err := e.Check(ctx, externalID, domain.SourcePoll); err != nil {
		e.logger.WarnContext(ctx, "status check failed, serving stored status", "external_id", externalID, "error", err)
		return order, nil
	}
	return e.orderRepo.GetByExternalID(ctx, e.dbExecutor, externalID)
}

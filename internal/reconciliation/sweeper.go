// internal/reconciliation/sweeper.go
package reconciliation

import (
	"context"
	"log/slog"
	"time"

	"readreward/internal/domain"
	"readreward/internal/repository"
)

const sweepBatchSize = 100

// Sweeper re-checks orders left pending longer than a webhook and a watch
// should take. It repairs notifications that never arrived.
type Sweeper struct {
	dbExecutor repository.DBExecutor
	orderRepo  repository.PaymentOrderRepository
	checker    Checker
	age        time.Duration
	interval   time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(dbExecutor repository.DBExecutor, orderRepo repository.PaymentOrderRepository, checker Checker, age, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		dbExecutor: dbExecutor,
		orderRepo:  orderRepo,
		checker:    checker,
		age:        age,
		interval:   interval,
		now:        time.Now,
		logger:     logger,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("payment sweeper started", "interval", s.interval.String(), "age", s.age.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("payment sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("payment sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce checks one batch of stale pending orders and returns how many
// reached a terminal status.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	stale, err := s.orderRepo.ListPendingBefore(ctx, s.dbExecutor, s.now().Add(-s.age), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	s.logger.Info("sweeping stale payment orders", "count", len(stale))
	resolved := 0
	for _, order := range stale {
		status, _, err := s.checker.Check(ctx, order.ExternalID, domain.SourceSweep)
		if err != nil {
			// One bad order must not stop the batch.
			s.logger.Error("stale order check failed", "external_id", order.ExternalID, "error", err)
			continue
		}
		if status.IsTerminal() {
			resolved++
		}
	}
	return resolved, nil
}

// internal/reconciliation/poller.go
package reconciliation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"readreward/internal/domain"
)

// Checker applies the provider's current status of one order.
type Checker interface {
	Check(ctx context.Context, externalID string, source domain.ReconcileSource) (domain.PaymentStatus, domain.ReconcileOutcome, error)
}

// Poller runs one bounded watch per order. A watch ends when a terminal
// status is observed, when its attempts run out, when Stop is called for its
// order, when the context passed to Watch is cancelled, or on Close.
type Poller struct {
	checker     Checker
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger

	root   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watches map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewPoller creates a poller that checks every interval, at most maxAttempts times per order.
func NewPoller(checker Checker, interval time.Duration, maxAttempts int, logger *slog.Logger) *Poller {
	root, cancel := context.WithCancel(context.Background())
	return &Poller{
		checker:     checker,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
		root:        root,
		cancel:      cancel,
		watches:     make(map[string]context.CancelFunc),
	}
}

// Watch starts watching externalID unless a watch for it is already running.
// It returns immediately.
func (p *Poller) Watch(ctx context.Context, externalID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if _, running := p.watches[externalID]; running {
		return
	}

	watchCtx, cancel := context.WithCancel(p.root)
	stop := context.AfterFunc(ctx, cancel)
	p.watches[externalID] = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer stop()
		defer p.forget(externalID)
		defer cancel()
		p.run(watchCtx, externalID)
	}()
}

// Stop cancels the watch of externalID, if any.
func (p *Poller) Stop(externalID string) {
	p.mu.Lock()
	cancel, ok := p.watches[externalID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// Active reports the number of running watches.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watches)
}

// Close cancels every watch and waits for them to return.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

func (p *Poller) forget(externalID string) {
	p.mu.Lock()
	delete(p.watches, externalID)
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context, externalID string) {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			p.logger.Debug("payment watch cancelled", "external_id", externalID, "attempt", attempt)
			return
		case <-timer.C:
		}

		status, outcome, err := p.checker.Check(ctx, externalID, domain.SourcePoll)
		if err != nil {
			p.logger.Warn("payment status check failed", "external_id", externalID, "attempt", attempt, "error", err)
		}
		if status.IsTerminal() {
			p.logger.Info("payment watch finished", "external_id", externalID, "status", status, "outcome", outcome, "attempt", attempt)
			return
		}
		timer.Reset(p.interval)
	}
	p.logger.Warn("payment watch gave up", "external_id", externalID, "attempts", p.maxAttempts)
}

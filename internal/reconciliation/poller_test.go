// internal/reconciliation/poller_test.go
package reconciliation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readreward/internal/domain"
	"readreward/internal/util"
)

// fakeChecker reports pending until paidAfter calls have been made.
type fakeChecker struct {
	mu        sync.Mutex
	calls     map[string]int
	paidAfter int
	err       error
}

func newFakeChecker(paidAfter int) *fakeChecker {
	return &fakeChecker{calls: make(map[string]int), paidAfter: paidAfter}
}

func (f *fakeChecker) Check(_ context.Context, externalID string, source domain.ReconcileSource) (domain.PaymentStatus, domain.ReconcileOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[externalID]++
	if f.err != nil {
		return "", "", f.err
	}
	if f.paidAfter > 0 && f.calls[externalID] >= f.paidAfter {
		return domain.PaymentStatusPaid, domain.OutcomeUpgraded, nil
	}
	return domain.PaymentStatusPending, domain.OutcomePending, nil
}

func (f *fakeChecker) Calls(externalID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[externalID]
}

func TestPoller_StopsOnTerminalStatus(t *testing.T) {
	checker := newFakeChecker(3)
	p := NewPoller(checker, time.Millisecond, 60, testLogger())
	defer p.Close()

	p.Watch(context.Background(), "ch_1")

	require.Eventually(t, func() bool { return p.Active() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 3, checker.Calls("ch_1"))
}

// checkerFunc adapts a function to Checker.
type checkerFunc func(ctx context.Context, externalID string, source domain.ReconcileSource) (domain.PaymentStatus, domain.ReconcileOutcome, error)

func (f checkerFunc) Check(ctx context.Context, externalID string, source domain.ReconcileSource) (domain.PaymentStatus, domain.ReconcileOutcome, error) {
	return f(ctx, externalID, source)
}

func TestPoller_StopsOnConflictingTerminalStatus(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	checker := checkerFunc(func(context.Context, string, domain.ReconcileSource) (domain.PaymentStatus, domain.ReconcileOutcome, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return domain.PaymentStatusFailed, domain.OutcomeConflict, util.ErrReconciliationConflict
	})
	p := NewPoller(checker, time.Millisecond, 60, testLogger())
	defer p.Close()

	p.Watch(context.Background(), "ch_1")

	require.Eventually(t, func() bool { return p.Active() == 0 }, time.Second, time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestPoller_GivesUpAfterMaxAttempts(t *testing.T) {
	checker := newFakeChecker(0)
	checker.err = errors.New("provider down")
	p := NewPoller(checker, time.Millisecond, 4, testLogger())
	defer p.Close()

	p.Watch(context.Background(), "ch_1")

	require.Eventually(t, func() bool { return p.Active() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 4, checker.Calls("ch_1"))
}

func TestPoller_DeduplicatesWatches(t *testing.T) {
	checker := newFakeChecker(0)
	p := NewPoller(checker, 10*time.Millisecond, 1000, testLogger())
	defer p.Close()

	p.Watch(context.Background(), "ch_1")
	p.Watch(context.Background(), "ch_1")
	p.Watch(context.Background(), "ch_2")
	assert.Equal(t, 2, p.Active())

	p.Stop("ch_1")
	require.Eventually(t, func() bool { return p.Active() == 1 }, time.Second, time.Millisecond)

	p.Stop("missing")
	assert.Equal(t, 1, p.Active())
}

func TestPoller_CallerContextCancelsWatch(t *testing.T) {
	checker := newFakeChecker(0)
	p := NewPoller(checker, 10*time.Millisecond, 1000, testLogger())
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p.Watch(ctx, "ch_1")
	cancel()

	require.Eventually(t, func() bool { return p.Active() == 0 }, time.Second, time.Millisecond)
}

func TestPoller_Close(t *testing.T) {
	checker := newFakeChecker(0)
	p := NewPoller(checker, 10*time.Millisecond, 1000, testLogger())

	p.Watch(context.Background(), "ch_1")
	p.Watch(context.Background(), "ch_2")
	p.Close()

	assert.Equal(t, 0, p.Active())
	p.Watch(context.Background(), "ch_3")
	assert.Equal(t, 0, p.Active())
}

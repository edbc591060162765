// internal/reconciliation/queue.go
package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"readreward/internal/domain"
	"readreward/internal/util"
)

const (
	NotificationsKey       = "readreward:payment_notifications"
	FailedNotificationsKey = "readreward:payment_notifications:failed"

	popTimeout      = 2 * time.Second
	maxTries        = 3
	detachedTimeout = 30 * time.Second
)

// NotificationApplier applies a push callback.
type NotificationApplier interface {
	ApplyNotification(ctx context.Context, n Notification) (domain.ReconcileOutcome, error)
}

// Queue decouples the webhook acknowledgment from reconciliation work.
// Notifications are pushed on a Redis list and applied by a consumer loop.
type Queue struct {
	redis      redis.Cmdable
	applier    NotificationApplier
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewQueue creates a notification queue on client.
func NewQueue(client redis.Cmdable, applier NotificationApplier, retryDelay time.Duration, logger *slog.Logger) *Queue {
	return &Queue{
		redis:      client,
		applier:    applier,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Enqueue pushes n for the consumer.
func (q *Queue) Enqueue(ctx context.Context, n Notification) error {
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := q.redis.LPush(ctx, NotificationsKey, data).Err(); err != nil {
		return err
	}
	q.logger.Debug("payment notification queued", "external_id", n.ExternalID, "status", n.Status)
	return nil
}

// Submit queues n, or applies it in a detached goroutine when the queue is
// unavailable. It never blocks on reconciliation work. The returned channel
// is closed once a detached apply finishes, and is nil when n was queued.
func (q *Queue) Submit(ctx context.Context, n Notification) <-chan struct{} {
	err := q.Enqueue(ctx, n)
	if err == nil {
		return nil
	}
	q.logger.Error("notification queue unavailable, applying inline", "external_id", n.ExternalID, "error", err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
		defer cancel()
		if _, err := q.applier.ApplyNotification(applyCtx, n); err != nil {
			// The watch or the sweeper repairs what is lost here.
			q.logger.Error("detached notification apply failed", "external_id", n.ExternalID, "error", err)
		}
	}()
	return done
}

// Start consumes notifications until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("payment notification consumer started")
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("payment notification consumer stopped")
			return
		default:
			q.processNext(ctx)
		}
	}
}

// processNext applies one notification and reports whether one was popped.
func (q *Queue) processNext(ctx context.Context) bool {
	result, err := q.redis.BRPop(ctx, popTimeout, NotificationsKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			q.logger.Warn("notification pop failed", "error", err)
			q.wait(ctx)
		}
		return false
	}

	var n Notification
	if err := json.Unmarshal([]byte(result[1]), &n); err != nil {
		q.logger.Error("bad notification data", "error", err)
		return true
	}

	n.Tries++
	outcome, err := q.applier.ApplyNotification(ctx, n)
	if err == nil {
		q.logger.Debug("notification applied", "external_id", n.ExternalID, "outcome", outcome)
		return true
	}

	if !retryable(err) || n.Tries >= maxTries {
		q.logger.Error("notification dropped", "external_id", n.ExternalID, "tries", n.Tries, "error", err)
		q.park(ctx, FailedNotificationsKey, n)
		return true
	}

	q.logger.Warn("notification apply failed, retrying", "external_id", n.ExternalID, "tries", n.Tries, "error", err)
	q.wait(ctx)
	q.park(ctx, NotificationsKey, n)
	return true
}

// Len reports the number of queued notifications.
func (q *Queue) Len(ctx context.Context) int64 {
	length, _ := q.redis.LLen(ctx, NotificationsKey).Result()
	return length
}

func (q *Queue) park(ctx context.Context, key string, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := q.redis.LPush(context.WithoutCancel(ctx), key, data).Err(); err != nil {
		q.logger.Error("failed to requeue notification", "external_id", n.ExternalID, "key", key, "error", err)
	}
}

func (q *Queue) wait(ctx context.Context) {
	if q.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(q.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// retryable reports whether a later attempt could succeed. A notification can
// race ahead of the order insert, so a missing order is retried.
func retryable(err error) bool {
	switch {
	case errors.Is(err, util.ErrInvalidInput),
		errors.Is(err, util.ErrReconciliationConflict):
		return false
	default:
		return true
	}
}

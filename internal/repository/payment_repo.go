// internal/repository/payment_repo.go
package repository

import (
	"context"
	"time"

	"readreward/internal/domain"
)

// PaymentOrderRepository persists orders; only reconciliation writes status.
type PaymentOrderRepository interface {
	CreateOrder(ctx context.Context, q DBExecutor, o *domain.PaymentOrder) error
	GetByExternalID(ctx context.Context, q DBExecutor, externalID string) (*domain.PaymentOrder, error)
	GetByExternalIDForUpdate(ctx context.Context, q DBExecutor, externalID string) (*domain.PaymentOrder, error)
	// TransitionStatus moves an order from one status to another and reports
	// whether the row was still in the expected status.
	TransitionStatus(ctx context.Context, q DBExecutor, id int64, from, to domain.PaymentStatus) (bool, error)
	ListPendingBefore(ctx context.Context, q DBExecutor, cutoff time.Time, limit int) ([]domain.PaymentOrder, error)
}

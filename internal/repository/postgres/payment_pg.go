// internal/repository/postgres/payment_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/internal/util"
)

const orderColumns = `id, external_id, internal_reference, user_id, plan, amount, status, payload, created_at, updated_at`

// PaymentOrderRepository implements repository.PaymentOrderRepository for PostgreSQL.
type PaymentOrderRepository struct{}

// NewPaymentOrderRepository creates a new PaymentOrderRepository.
func NewPaymentOrderRepository() repository.PaymentOrderRepository {
	return &PaymentOrderRepository{}
}

// CreateOrder persists a freshly created order.
func (r *PaymentOrderRepository) CreateOrder(ctx context.Context, q repository.DBExecutor, o *domain.PaymentOrder) error {
	query := `INSERT INTO payment_orders (external_id, internal_reference, user_id, plan, amount, status, payload, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		o.ExternalID, o.InternalReference, o.UserID, o.Plan, o.Amount, o.Status, o.Payload, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment order %s: %w", o.ExternalID, err)
	}
	return nil
}

// GetByExternalID finds an order by the provider's identifier.
func (r *PaymentOrderRepository) GetByExternalID(ctx context.Context, q repository.DBExecutor, externalID string) (*domain.PaymentOrder, error) {
	return r.getOrder(ctx, q, `SELECT `+orderColumns+` FROM payment_orders WHERE external_id = $1`, externalID)
}

// GetByExternalIDForUpdate locks the order row for the surrounding transaction.
func (r *PaymentOrderRepository) GetByExternalIDForUpdate(ctx context.Context, q repository.DBExecutor, externalID string) (*domain.PaymentOrder, error) {
	return r.getOrder(ctx, q, `SELECT `+orderColumns+` FROM payment_orders WHERE external_id = $1 FOR UPDATE`, externalID)
}

func (r *PaymentOrderRepository) getOrder(ctx context.Context, q repository.DBExecutor, query, externalID string) (*domain.PaymentOrder, error) {
	var order domain.PaymentOrder
	if err := q.GetContext(ctx, &order, query, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get payment order %s: %w", externalID, err)
	}
	return &order, nil
}

// TransitionStatus is a compare-and-set on the status column.
func (r *PaymentOrderRepository) TransitionStatus(ctx context.Context, q repository.DBExecutor, id int64, from, to domain.PaymentStatus) (bool, error) {
	query := `UPDATE payment_orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := q.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition payment order %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for payment order %d: %w", id, err)
	}
	return rowsAffected > 0, nil
}

// ListPendingBefore returns pending orders created before cutoff, oldest first.
func (r *PaymentOrderRepository) ListPendingBefore(ctx context.Context, q repository.DBExecutor, cutoff time.Time, limit int) ([]domain.PaymentOrder, error) {
	orders := []domain.PaymentOrder{}
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3`
	if err := q.SelectContext(ctx, &orders, query, domain.PaymentStatusPending, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending payment orders: %w", err)
	}
	return orders, nil
}

// internal/repository/postgres/user_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/internal/util"
)

const userColumns = `id, username, balance, total_earnings, can_withdraw, plan, created_at, updated_at`

// UserRepository implements repository.UserRepository for PostgreSQL.
type UserRepository struct{}

// NewUserRepository creates a new UserRepository.
func NewUserRepository() repository.UserRepository {
	return &UserRepository{}
}

// CreateUser inserts a new user into the database using the provided DBExecutor.
func (r *UserRepository) CreateUser(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	query := `INSERT INTO users (username, balance, total_earnings, can_withdraw, plan, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		user.Username, user.Balance, user.TotalEarnings, user.CanWithdraw, user.Plan, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their ID using the provided DBExecutor.
func (r *UserRepository) GetUserByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.User, error) {
	return r.getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserForUpdate locks the user row for the lifetime of the surrounding transaction.
func (r *UserRepository) GetUserForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.User, error) {
	return r.getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *UserRepository) getUser(ctx context.Context, q repository.DBExecutor, query string, id int64) (*domain.User, error) {
	var user domain.User
	if err := q.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID %d: %w", id, err)
	}
	return &user, nil
}

// UpdateBalance writes the money columns of a user row.
func (r *UserRepository) UpdateBalance(ctx context.Context, q repository.DBExecutor, id int64, balance, totalEarnings decimal.Decimal, canWithdraw bool) error {
	query := `UPDATE users SET balance = $1, total_earnings = $2, can_withdraw = $3, updated_at = $4 WHERE id = $5`
	result, err := q.ExecContext(ctx, query, balance, totalEarnings, canWithdraw, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update balance for user %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating balance for user %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return util.ErrUserNotFound
	}
	return nil
}

// UpgradePlan applies the plan only if the user is not already on it.
func (r *UserRepository) UpgradePlan(ctx context.Context, q repository.DBExecutor, id int64, plan domain.Plan) (bool, error) {
	query := `UPDATE users SET plan = $1, updated_at = $2 WHERE id = $3 AND plan <> $1`
	result, err := q.ExecContext(ctx, query, plan, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to upgrade plan for user %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after upgrading user %d: %w", id, err)
	}
	return rowsAffected > 0, nil
}

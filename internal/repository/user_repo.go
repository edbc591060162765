// internal/repository/user_repo.go
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"readreward/internal/domain"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// CreateUser adds a new user to the database using the provided DBExecutor.
	CreateUser(ctx context.Context, q DBExecutor, user *domain.User) error
	// GetUserByID retrieves a user by their ID.
	GetUserByID(ctx context.Context, q DBExecutor, id int64) (*domain.User, error)
	// GetUserForUpdate retrieves a user and locks the row until q's transaction ends.
	GetUserForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.User, error)
	// UpdateBalance writes the ledger-owned money columns of a user.
	UpdateBalance(ctx context.Context, q DBExecutor, id int64, balance, totalEarnings decimal.Decimal, canWithdraw bool) error
	// UpgradePlan sets the plan only when it differs; it reports whether a row changed.
	UpgradePlan(ctx context.Context, q DBExecutor, id int64, plan domain.Plan) (bool, error)
}

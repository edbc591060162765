// internal/repository/completion_repo.go
package repository

import (
	"context"

	"readreward/internal/domain"
)

// CompletionRepository stores completion records beside the ledger.
type CompletionRepository interface {
	// CreateCompletion inserts the record; a duplicate (user, content) pair yields util.ErrAlreadyCompleted.
	CreateCompletion(ctx context.Context, q DBExecutor, c *domain.Completion) error
	ExistsForUserAndContent(ctx context.Context, q DBExecutor, userID, contentID int64) (bool, error)
	CountByUser(ctx context.Context, q DBExecutor, userID int64) (int, error)
	// ListByUser returns completions oldest first.
	ListByUser(ctx context.Context, q DBExecutor, userID int64) ([]domain.Completion, error)
	// ListByUserAfterID returns completions with id > afterID, oldest first.
	ListByUserAfterID(ctx context.Context, q DBExecutor, userID, afterID int64) ([]domain.Completion, error)
}

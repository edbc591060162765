// internal/repository/postgres/completion_pg.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/internal/util"
)

const (
	completionColumns = `id, user_id, content_id, reward, rating, opinion, time_spent, answers, created_at`
	uniqueViolation   = pq.ErrorCode("23505")
)

// CompletionRepository implements repository.CompletionRepository for PostgreSQL.
type CompletionRepository struct{}

// NewCompletionRepository creates a new CompletionRepository.
func NewCompletionRepository() repository.CompletionRepository {
	return &CompletionRepository{}
}

// CreateCompletion inserts a completion. The UNIQUE (user_id, content_id)
// constraint is the last line of defence against double rewards.
func (r *CompletionRepository) CreateCompletion(ctx context.Context, q repository.DBExecutor, c *domain.Completion) error {
	query := `INSERT INTO completions (user_id, content_id, reward, rating, opinion, time_spent, answers, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		c.UserID, c.ContentID, c.Reward, c.Rating, c.Opinion, c.TimeSpent, c.Answers, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return util.ErrAlreadyCompleted
		}
		return fmt.Errorf("failed to create completion: %w", err)
	}
	return nil
}

// ExistsForUserAndContent reports whether the pair was already rewarded.
func (r *CompletionRepository) ExistsForUserAndContent(ctx context.Context, q repository.DBExecutor, userID, contentID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM completions WHERE user_id = $1 AND content_id = $2)`
	if err := q.GetContext(ctx, &exists, query, userID, contentID); err != nil {
		return false, fmt.Errorf("failed to check completion for user %d content %d: %w", userID, contentID, err)
	}
	return exists, nil
}

// CountByUser counts a user's completions.
func (r *CompletionRepository) CountByUser(ctx context.Context, q repository.DBExecutor, userID int64) (int, error) {
	var count int
	if err := q.GetContext(ctx, &count, `SELECT COUNT(*) FROM completions WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("failed to count completions for user %d: %w", userID, err)
	}
	return count, nil
}

// ListByUser returns every completion of a user, oldest first.
func (r *CompletionRepository) ListByUser(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Completion, error) {
	completions := []domain.Completion{}
	query := `SELECT ` + completionColumns + ` FROM completions WHERE user_id = $1 ORDER BY id ASC`
	if err := q.SelectContext(ctx, &completions, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list completions for user %d: %w", userID, err)
	}
	return completions, nil
}

// ListByUserAfterID returns completions newer than afterID, oldest first.
func (r *CompletionRepository) ListByUserAfterID(ctx context.Context, q repository.DBExecutor, userID, afterID int64) ([]domain.Completion, error) {
	completions := []domain.Completion{}
	query := `SELECT ` + completionColumns + ` FROM completions WHERE user_id = $1 AND id > $2 ORDER BY id ASC`
	if err := q.SelectContext(ctx, &completions, query, userID, afterID); err != nil {
		return nil, fmt.Errorf("failed to list completions for user %d after %d: %w", userID, afterID, err)
	}
	return completions, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

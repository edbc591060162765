// internal/repository/postgres/content_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"readreward/internal/domain"
	"readreward/internal/repository"
	"readreward/internal/util"
)

// ContentRepository reads rewards from the contents table.
type ContentRepository struct{}

// NewContentRepository creates a new ContentRepository.
func NewContentRepository() repository.ContentRepository {
	return &ContentRepository{}
}

// GetContentByID returns active content only.
func (r *ContentRepository) GetContentByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Content, error) {
	var content domain.Content
	query := `SELECT id, title, reward, active FROM contents WHERE id = $1 AND active = TRUE`
	if err := q.GetContext(ctx, &content, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content %d: %w", id, err)
	}
	return &content, nil
}

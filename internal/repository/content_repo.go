// internal/repository/content_repo.go
package repository

import (
	"context"

	"readreward/internal/domain"
)

// ContentRepository is the canonical reward source.
type ContentRepository interface {
	GetContentByID(ctx context.Context, q DBExecutor, id int64) (*domain.Content, error)
}

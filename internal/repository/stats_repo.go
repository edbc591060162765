// internal/repository/stats_repo.go
package repository

import (
	"context"

	"readreward/internal/domain"
)

// StatsRepository caches derived per-user aggregates.
type StatsRepository interface {
	// GetStats returns util.ErrNotFound when no snapshot exists yet.
	GetStats(ctx context.Context, q DBExecutor, userID int64) (*domain.StatsSnapshot, error)
	UpsertStats(ctx context.Context, q DBExecutor, s *domain.StatsSnapshot) error
}

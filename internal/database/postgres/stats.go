package postgres

import (
	"context"

	"faceid/internal/database"
	"faceid/internal/errs"
)

// StatsRepository aggregates store-wide counters.
type StatsRepository struct {
	pool *Pool
}

// NewStatsRepository creates a new PostgreSQL stats repository.
func NewStatsRepository(pool *Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// SystemStats returns person and photo counters across the whole store.
func (r *StatsRepository) SystemStats(ctx context.Context) (*database.SystemStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM persons),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE NOT is_active),
			COALESCE(AVG(confidence) FILTER (WHERE is_active), 0)
		FROM photos
	`

	var stats database.SystemStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalPersons,
		&stats.ActivePhotos,
		&stats.InactivePhotos,
		&stats.AvgConfidence,
	)
	if err != nil {
		return nil, errs.Storage(err, "failed to query system stats")
	}
	return &stats, nil
}

var _ database.StatsStore = (*StatsRepository)(nil)

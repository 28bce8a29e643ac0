package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insighthub/engine/internal/models"
)

// PatternsRepository reads the resolution_patterns reference table. The
// pipeline never writes it; rows are seeded operationally.
type PatternsRepository struct {
	db *pgxpool.Pool
}

// NewPatternsRepository creates a new resolution patterns repository.
func NewPatternsRepository(db *pgxpool.Pool) *PatternsRepository {
	return &PatternsRepository{db: db}
}

// BestByCategory returns the pattern with the highest success rate for the
// given category, or nil when none exists. Absence is not an error.
func (r *PatternsRepository) BestByCategory(ctx context.Context, category string) (*models.ResolutionPattern, error) {
	var p models.ResolutionPattern

	err := r.db.QueryRow(ctx, `
		SELECT pattern_id, issue_category, common_resolution, success_rate, avg_resolution_time_minutes, created_at
		FROM resolution_patterns
		WHERE issue_category = $1
		ORDER BY success_rate DESC, pattern_id ASC
		LIMIT 1`,
		category,
	).Scan(&p.PatternID, &p.IssueCategory, &p.CommonResolution, &p.SuccessRate, &p.AvgResolutionTimeMinutes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("best pattern by category: %w", err)
	}

	return &p, nil
}

// Package repository handles data access for the insight engine's PostgreSQL store.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insighthub/engine/internal/insighterrors"
	"github.com/insighthub/engine/internal/models"
)

const uniqueViolationCode = "23505"

// FeedbackRepository handles data access for the customer_feedback table.
type FeedbackRepository struct {
	db *pgxpool.Pool
}

// NewFeedbackRepository creates a new feedback repository.
func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Insert stores a new feedback item. A duplicate feedback_id is a conflict;
// the stored item is never silently overwritten.
func (r *FeedbackRepository) Insert(ctx context.Context, item *models.FeedbackItem) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO customer_feedback (feedback_id, customer_id, channel, "timestamp", raw_text, metadata, processed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		item.FeedbackID, item.CustomerID, item.Channel, item.Timestamp, item.RawText, item.Metadata,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return insighterrors.NewConflictError(fmt.Sprintf("feedback %s already exists", item.FeedbackID))
		}

		return fmt.Errorf("feedback insert: %w", err)
	}

	return nil
}

// GetByID returns the feedback item with the given ID.
func (r *FeedbackRepository) GetByID(ctx context.Context, feedbackID string) (*models.FeedbackItem, error) {
	var item models.FeedbackItem

	err := r.db.QueryRow(ctx, `
		SELECT feedback_id, customer_id, channel, "timestamp", raw_text, metadata, processed
		FROM customer_feedback
		WHERE feedback_id = $1`,
		feedbackID,
	).Scan(&item.FeedbackID, &item.CustomerID, &item.Channel, &item.Timestamp, &item.RawText, &item.Metadata, &item.Processed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, insighterrors.NewNotFoundError("feedback", fmt.Sprintf("feedback %s not found", feedbackID))
		}

		return nil, fmt.Errorf("feedback get: %w", err)
	}

	return &item, nil
}

// ListUnprocessed returns up to limit unprocessed feedback items, oldest
// first. The feedback_id tie-break keeps batch order deterministic.
func (r *FeedbackRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.FeedbackItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT feedback_id, customer_id, channel, "timestamp", raw_text, metadata, processed
		FROM customer_feedback
		WHERE processed = FALSE
		ORDER BY "timestamp" ASC, feedback_id ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed feedback: %w", err)
	}
	defer rows.Close()

	var items []models.FeedbackItem

	for rows.Next() {
		var item models.FeedbackItem
		if err := rows.Scan(
			&item.FeedbackID, &item.CustomerID, &item.Channel, &item.Timestamp,
			&item.RawText, &item.Metadata, &item.Processed,
		); err != nil {
			return nil, fmt.Errorf("scan feedback item: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unprocessed feedback: %w", err)
	}

	return items, nil
}

// Reset removes the item's insight and clears its processed flag in one
// transaction, making the item eligible for re-annotation.
func (r *FeedbackRepository) Reset(ctx context.Context, feedbackID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reset begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE customer_feedback SET processed = FALSE WHERE feedback_id = $1`,
		feedbackID,
	)
	if err != nil {
		return fmt.Errorf("reset feedback: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return insighterrors.NewNotFoundError("feedback", fmt.Sprintf("feedback %s not found", feedbackID))
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM feedback_insights WHERE feedback_id = $1`,
		feedbackID,
	); err != nil {
		return fmt.Errorf("reset insight: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reset commit: %w", err)
	}

	return nil
}

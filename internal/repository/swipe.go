package repository

import (
	"context"
	"errors"
	"fmt"

	"room-match-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SwipeRepository handles database operations for swipes
type SwipeRepository struct {
	db *pgxpool.Pool
}

// NewSwipeRepository creates a new swipe repository
func NewSwipeRepository(db *pgxpool.Pool) *SwipeRepository {
	return &SwipeRepository{db: db}
}

// Upsert records a swipe, overwriting any prior vote for the same
// (user, target) pair.
func (r *SwipeRepository) Upsert(ctx context.Context, swipe *models.Swipe) error {
	query := `
		INSERT INTO swipes (user_id, target_id, vote, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, target_id) DO UPDATE SET vote = EXCLUDED.vote
	`
	_, err := r.db.Exec(ctx, query, swipe.UserID, swipe.TargetID, swipe.Vote, swipe.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert swipe: %w", err)
	}
	return nil
}

// GetPositive retrieves the swipe from userID on targetID if it exists
// with a positive vote; returns (nil, nil) otherwise.
func (r *SwipeRepository) GetPositive(ctx context.Context, userID, targetID string) (*models.Swipe, error) {
	query := `
		SELECT user_id, target_id, vote, created_at
		FROM swipes
		WHERE user_id = $1 AND target_id = $2 AND vote = true
	`
	var swipe models.Swipe
	err := r.db.QueryRow(ctx, query, userID, targetID).Scan(
		&swipe.UserID, &swipe.TargetID, &swipe.Vote, &swipe.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get swipe: %w", err)
	}
	return &swipe, nil
}

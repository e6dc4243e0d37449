package repository

import (
	"context"
	"fmt"

	"room-match-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchRepository handles database operations for matches
type MatchRepository struct {
	db *pgxpool.Pool
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateIfAbsent inserts a match record for an already-normalized pair.
// A concurrent attempt for the same pair collapses onto the existing row;
// the return value reports whether this call created the record.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, match *models.Match) (bool, error) {
	query := `
		INSERT INTO matches (id, user_a, user_b, room_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_a, user_b) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query,
		match.ID, match.UserA, match.UserB, match.RoomID, match.CreatedAt,
	)
	if err != nil {
		// The unique index can still surface as a raw violation when two
		// inserts land in the same commit window; that is the expected
		// outcome of the race, not an error.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create match: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListByUser retrieves all matches involving a user, newest first.
func (r *MatchRepository) ListByUser(ctx context.Context, userID string) ([]models.Match, error) {
	query := `
		SELECT id, user_a, user_b, room_id, created_at
		FROM matches
		WHERE user_a = $1 OR user_b = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.UserA, &m.UserB, &m.RoomID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matches: %w", err)
	}
	return matches, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"room-match-backend/internal/domain"
	"room-match-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ParticipantRepository handles database operations for room membership
type ParticipantRepository struct {
	db *pgxpool.Pool
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Add inserts a participant row. Returns domain.ErrAlreadyExists if the
// (room, user) pair is already present.
func (r *ParticipantRepository) Add(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (room_id, user_id, joined_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.Exec(ctx, query, p.RoomID, p.UserID, p.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("participant %s in room %s: %w", p.UserID, p.RoomID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

// Get retrieves a participant row; returns (nil, nil) when the user is
// not in the room.
func (r *ParticipantRepository) Get(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	query := `
		SELECT room_id, user_id, joined_at
		FROM participants
		WHERE room_id = $1 AND user_id = $2
	`
	var p models.Participant
	err := r.db.QueryRow(ctx, query, roomID, userID).Scan(&p.RoomID, &p.UserID, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &p, nil
}

// ListByRoom retrieves all participants of a room
func (r *ParticipantRepository) ListByRoom(ctx context.Context, roomID string) ([]models.Participant, error) {
	query := `
		SELECT room_id, user_id, joined_at
		FROM participants
		WHERE room_id = $1
		ORDER BY joined_at
	`
	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read participants: %w", err)
	}
	return participants, nil
}

// CountByRoom counts the participants of a room
func (r *ParticipantRepository) CountByRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM participants WHERE room_id = $1`, roomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// Remove deletes a participant row
func (r *ParticipantRepository) Remove(ctx context.Context, roomID, userID string) error {
	query := `DELETE FROM participants WHERE room_id = $1 AND user_id = $2`
	_, err := r.db.Exec(ctx, query, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

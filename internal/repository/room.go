package repository

import (
	"context"
	"errors"
	"fmt"

	"room-match-backend/internal/domain"
	"room-match-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const roomColumns = "id, name, category, created_by, status, max_participants, created_at, updated_at"

// RoomRepository handles database operations for rooms
type RoomRepository struct {
	db *pgxpool.Pool
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create creates a new room
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	query := `
		INSERT INTO rooms (id, name, category, created_by, status, max_participants, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		room.ID, room.Name, room.Category, room.CreatedBy,
		room.Status, room.MaxParticipants, room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetByID retrieves a room by ID
func (r *RoomRepository) GetByID(ctx context.Context, id string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	room, err := scanRoom(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// ListActive retrieves all rooms that are waiting, ready or playing,
// newest first.
func (r *RoomRepository) ListActive(ctx context.Context) ([]models.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE status IN ('waiting', 'ready', 'playing')
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rooms: %w", err)
	}
	return rooms, nil
}

// UpdateStatus conditionally sets the room status. The write only takes
// effect if the persisted status still equals current; the second return
// value reports whether a row was updated.
func (r *RoomRepository) UpdateStatus(ctx context.Context, roomID string, current, next models.RoomStatus) (*models.Room, bool, error) {
	query := `
		UPDATE rooms
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING ` + roomColumns

	room, err := scanRoom(r.db.QueryRow(ctx, query, next, roomID, current))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to update room status: %w", err)
	}
	return room, true, nil
}

// UpdateStatusAsCreator conditionally sets the room status with the
// creator identity and the expected current status both evaluated inside
// the same statement, so validation and commit are atomic.
func (r *RoomRepository) UpdateStatusAsCreator(ctx context.Context, roomID, creatorID string, expected, next models.RoomStatus) (*models.Room, bool, error) {
	query := `
		UPDATE rooms
		SET status = $1, updated_at = now()
		WHERE id = $2 AND created_by = $3 AND status = $4
		RETURNING ` + roomColumns

	room, err := scanRoom(r.db.QueryRow(ctx, query, next, roomID, creatorID, expected))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to update room status: %w", err)
	}
	return room, true, nil
}

// Delete removes a room by ID. Used only as compensating cleanup when the
// creator's participant row could not be written after room creation.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func scanRoom(row pgx.Row) (*models.Room, error) {
	var room models.Room
	err := row.Scan(
		&room.ID, &room.Name, &room.Category, &room.CreatedBy,
		&room.Status, &room.MaxParticipants, &room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

package services

import (
	"context"

	"room-match-backend/internal/models"
)

// The record-store interfaces the coordinators operate against. The pgx
// repositories satisfy them in production; tests use in-memory fakes.

// RoomStore persists rooms and supports conditional status updates. Both
// update methods report zero rows affected as (nil, false, nil), a valid
// outcome distinct from a transport error.
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id string) (*models.Room, error)
	ListActive(ctx context.Context) ([]models.Room, error)
	UpdateStatus(ctx context.Context, roomID string, current, next models.RoomStatus) (*models.Room, bool, error)
	UpdateStatusAsCreator(ctx context.Context, roomID, creatorID string, expected, next models.RoomStatus) (*models.Room, bool, error)
	Delete(ctx context.Context, id string) error
}

// ParticipantStore persists room membership.
type ParticipantStore interface {
	Add(ctx context.Context, p *models.Participant) error
	Get(ctx context.Context, roomID, userID string) (*models.Participant, error)
	ListByRoom(ctx context.Context, roomID string) ([]models.Participant, error)
	CountByRoom(ctx context.Context, roomID string) (int, error)
	Remove(ctx context.Context, roomID, userID string) error
}

// SwipeStore persists swipes with upsert semantics.
type SwipeStore interface {
	Upsert(ctx context.Context, swipe *models.Swipe) error
	GetPositive(ctx context.Context, userID, targetID string) (*models.Swipe, error)
}

// MatchStore persists matches with idempotent creation.
type MatchStore interface {
	CreateIfAbsent(ctx context.Context, match *models.Match) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.Match, error)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"room-match-backend/internal/domain"
	"room-match-backend/internal/models"
	"room-match-backend/internal/rules"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultCategory = "General"

// RoomService coordinates the room lifecycle against the record store.
type RoomService struct {
	rooms        RoomStore
	participants ParticipantStore
}

// NewRoomService creates a new room service
func NewRoomService(rooms RoomStore, participants ParticipantStore) *RoomService {
	return &RoomService{
		rooms:        rooms,
		participants: participants,
	}
}

// RoomDetails bundles a room with its participants, the payload observers
// fetch when resynchronizing after a reconnect.
type RoomDetails struct {
	Room         *models.Room         `json:"room"`
	Participants []models.Participant `json:"participants"`
}

// Create creates a room in the waiting state and joins the creator as its
// first participant. The two writes are not transactional: if the
// participant insert fails, the room row is removed again (best effort)
// so no participant-less room is left behind.
func (s *RoomService) Create(ctx context.Context, creatorID, name, category string, maxParticipants *int) (*models.Room, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "is required"}
	}
	if category == "" {
		category = defaultCategory
	}

	now := time.Now()
	room := &models.Room{
		ID:              uuid.New().String(),
		Name:            name,
		Category:        category,
		CreatedBy:       creatorID,
		Status:          models.StatusWaiting,
		MaxParticipants: maxParticipants,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	creator := &models.Participant{RoomID: room.ID, UserID: creatorID, JoinedAt: now}
	if err := s.participants.Add(ctx, creator); err != nil {
		if delErr := s.rooms.Delete(ctx, room.ID); delErr != nil {
			log.Error().Err(delErr).
				Str("room_id", room.ID).
				Msg("Compensating room cleanup failed, orphaned room left behind")
		}
		return nil, fmt.Errorf("failed to join creator to room: %w", err)
	}

	log.Info().
		Str("room_id", room.ID).
		Str("created_by", creatorID).
		Msg("Room created")
	return room, nil
}

// List retrieves all rooms open for interaction (waiting, ready, playing).
func (s *RoomService) List(ctx context.Context) ([]models.Room, error) {
	return s.rooms.ListActive(ctx)
}

// Get retrieves a single room.
func (s *RoomService) Get(ctx context.Context, roomID string) (*models.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

// Details retrieves a room together with its participants.
func (s *RoomService) Details(ctx context.Context, roomID string) (*RoomDetails, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	participants, err := s.participants.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &RoomDetails{Room: room, Participants: participants}, nil
}

// Join adds a user to a room. Re-entry is idempotent. The creator may
// rejoin while the room is waiting, ready or playing; anyone else only
// while it is waiting. A capacity bound, when set, is enforced.
func (s *RoomService) Join(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	existing, err := s.participants.Get(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Debug().Str("room_id", roomID).Str("user_id", userID).Msg("Re-entry into room")
		return existing, nil
	}

	joinable := room.Status == models.StatusWaiting
	if room.CreatedBy == userID {
		joinable = room.Status == models.StatusWaiting ||
			room.Status == models.StatusReady ||
			room.Status == models.StatusPlaying
	}
	if !joinable {
		return nil, fmt.Errorf("room %s has status %s: %w", roomID, room.Status, domain.ErrRoomNotJoinable)
	}

	if room.MaxParticipants != nil {
		count, err := s.participants.CountByRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if count >= *room.MaxParticipants {
			return nil, domain.ErrRoomFull
		}
	}

	p := &models.Participant{RoomID: roomID, UserID: userID, JoinedAt: time.Now()}
	if err := s.participants.Add(ctx, p); err != nil {
		// A concurrent join of the same user landed first; converge on it.
		if errors.Is(err, domain.ErrAlreadyExists) {
			return s.participants.Get(ctx, roomID, userID)
		}
		return nil, err
	}

	log.Info().Str("room_id", roomID).Str("user_id", userID).Msg("User joined room")
	return p, nil
}

// Leave removes a user from a room.
func (s *RoomService) Leave(ctx context.Context, roomID, userID string) error {
	if err := s.participants.Remove(ctx, roomID, userID); err != nil {
		return err
	}
	log.Info().Str("room_id", roomID).Str("user_id", userID).Msg("User left room")
	return nil
}

// UpdateStatus is the client-optimistic lifecycle update. It reads the
// persisted status, rejects a stale expectation as a conflict, checks
// permission and transition legality, then issues a write conditional on
// the status it just read. A zero-row write is re-fetched and classified.
func (s *RoomService) UpdateStatus(ctx context.Context, userID, roomID string, next, expected models.RoomStatus) (*models.Room, error) {
	if !next.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "is not a known status"}
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.Status != expected {
		// Expected under concurrency; the caller resynchronizes silently.
		log.Debug().
			Str("room_id", roomID).
			Str("user_id", userID).
			Str("expected", string(expected)).
			Str("actual", string(room.Status)).
			Msg("Optimistic status expectation out of date")
		return nil, &domain.ConflictError{Expected: expected, Actual: room.Status}
	}

	if err := rules.CheckRoomPermission(userID, room.CreatedBy); err != nil {
		return nil, err
	}
	if err := rules.ValidateStatusTransition(room.Status, next); err != nil {
		return nil, err
	}

	updated, ok, err := s.rooms.UpdateStatus(ctx, roomID, room.Status, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A write raced in between our read and our write.
		return nil, s.classifyUpdateFailure(ctx, userID, roomID, expected)
	}

	log.Info().
		Str("room_id", roomID).
		Str("from", string(room.Status)).
		Str("to", string(next)).
		Msg("Room status updated")
	return updated, nil
}

// UpdateStatusSecure is the authoritative lifecycle update: permission,
// expected status and room identity are all evaluated by the store inside
// one atomic conditional write, leaving no window between validation and
// commit. A zero-row write is re-fetched and classified not-found, then
// forbidden, then conflict.
func (s *RoomService) UpdateStatusSecure(ctx context.Context, userID, roomID string, next, expected models.RoomStatus) (*models.Room, error) {
	if !next.IsValid() || !expected.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "is not a known status"}
	}
	if err := rules.ValidateStatusTransition(expected, next); err != nil {
		return nil, err
	}

	updated, ok, err := s.rooms.UpdateStatusAsCreator(ctx, roomID, userID, expected, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.classifyUpdateFailure(ctx, userID, roomID, expected)
	}

	log.Info().
		Str("room_id", roomID).
		Str("from", string(expected)).
		Str("to", string(next)).
		Msg("Room status updated (authoritative)")
	return updated, nil
}

// classifyUpdateFailure explains a conditional write that affected zero
// rows. The store cannot distinguish the causes itself, so we re-fetch
// and report the first that applies: the room is gone, the caller is not
// the creator, or the status moved on.
func (s *RoomService) classifyUpdateFailure(ctx context.Context, userID, roomID string, expected models.RoomStatus) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != userID {
		return domain.ErrPermissionDenied
	}
	if room.Status != expected {
		return &domain.ConflictError{Expected: expected, Actual: room.Status}
	}
	return fmt.Errorf("conditional update failed for room %s with no classifiable cause", roomID)
}

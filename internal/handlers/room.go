package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"room-match-backend/internal/middleware"
	"room-match-backend/internal/models"
	"room-match-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RoomHandler handles room-related HTTP requests
type RoomHandler struct {
	roomService *services.RoomService
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(roomService *services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateRoomRequest represents a request to create a room
type CreateRoomRequest struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	MaxParticipants *int   `json:"max_participants"`
}

// UpdateStatusRequest carries a status transition with the caller's
// expectation of the current status.
type UpdateStatusRequest struct {
	NextStatus            models.RoomStatus `json:"next_status"`
	ExpectedCurrentStatus models.RoomStatus `json:"expected_current_status"`
}

// ListRooms handles GET /rooms
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.roomService.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list rooms")
		respondError(w, "failed to list rooms", http.StatusInternalServerError)
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	respondJSON(w, http.StatusOK, rooms)
}

// CreateRoom handles POST /rooms
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	room, err := h.roomService.Create(r.Context(), userID, req.Name, req.Category, req.MaxParticipants)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, room)
}

// GetRoom handles GET /rooms/{room_id}: room plus participants, the
// snapshot clients fetch when resynchronizing.
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")

	details, err := h.roomService.Details(r.Context(), roomID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, details)
}

// JoinRoom handles POST /rooms/{room_id}/join
func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "room_id")

	participant, err := h.roomService.Join(r.Context(), roomID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, participant)
}

// LeaveRoom handles POST /rooms/{room_id}/leave
func (h *RoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "room_id")

	if err := h.roomService.Leave(r.Context(), roomID, userID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus handles PATCH /rooms/{room_id}/status, the
// client-optimistic lifecycle path.
func (h *RoomHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.roomService.UpdateStatus)
}

// UpdateStatusSecure handles POST /rooms/{room_id}/status/secure, the
// authoritative path backed by a single atomic conditional write.
func (h *RoomHandler) UpdateStatusSecure(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.roomService.UpdateStatusSecure)
}

type statusUpdateFunc func(ctx context.Context, userID, roomID string, next, expected models.RoomStatus) (*models.Room, error)

func (h *RoomHandler) updateStatus(w http.ResponseWriter, r *http.Request, update statusUpdateFunc) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "room_id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NextStatus == "" || req.ExpectedCurrentStatus == "" {
		respondError(w, "next_status and expected_current_status are required", http.StatusBadRequest)
		return
	}

	room, err := update(r.Context(), userID, roomID, req.NextStatus, req.ExpectedCurrentStatus)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, room)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"room-match-backend/internal/middleware"
	"room-match-backend/internal/models"
	"room-match-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// MatchHandler handles swipe and match HTTP requests
type MatchHandler struct {
	matchService *services.MatchService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchService *services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// SwipeRequest represents a swipe on another user. Vote is a pointer so
// a missing field is rejected rather than read as false.
type SwipeRequest struct {
	TargetID string `json:"target_id"`
	Vote     *bool  `json:"vote"`
}

// RecordSwipe handles POST /swipes
func (h *MatchHandler) RecordSwipe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SwipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Vote == nil {
		respondError(w, "vote is required and must be a boolean", http.StatusBadRequest)
		return
	}

	result, err := h.matchService.RecordSwipe(r.Context(), userID, req.TargetID, *req.Vote)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListMatches handles GET /matches
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	matches, err := h.matchService.ListMatches(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list matches")
		respondError(w, "failed to list matches", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []models.Match{}
	}
	respondJSON(w, http.StatusOK, matches)
}

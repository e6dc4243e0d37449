package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"room-match-backend/internal/domain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	// CurrentStatus is set on state-mismatch conflicts so stale clients
	// can resynchronize without another round trip.
	CurrentStatus string `json:"current_status,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondDomainError maps the domain error taxonomy onto HTTP statuses.
// Conflicts report the actual status with a 409; they are an expected
// concurrency outcome, not a server failure.
func respondDomainError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		ce *domain.ConflictError
		te *domain.IllegalTransitionError
	)

	switch {
	case errors.As(err, &ve):
		respondError(w, ve.Error(), http.StatusBadRequest)
	case errors.As(err, &te):
		respondError(w, te.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrPermissionDenied):
		respondError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrRoomNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &ce):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:         ce.Error(),
			CurrentStatus: string(ce.Actual),
		})
	case errors.Is(err, domain.ErrRoomNotJoinable), errors.Is(err, domain.ErrRoomFull):
		respondError(w, err.Error(), http.StatusConflict)
	default:
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

// Package rules holds the pure domain rules for rooms and matching.
// Nothing in here touches storage or the network.
package rules

import (
	"room-match-backend/internal/domain"
	"room-match-backend/internal/models"
)

// statusFlow is the room lifecycle transition table. A self-loop is always
// allowed as a no-op and is not listed.
var statusFlow = map[models.RoomStatus][]models.RoomStatus{
	models.StatusWaiting:  {models.StatusReady},
	models.StatusReady:    {models.StatusPlaying, models.StatusWaiting},
	models.StatusPlaying:  {models.StatusFinished},
	models.StatusFinished: {models.StatusWaiting},
}

// ValidateStatusTransition checks whether current -> next is a legal room
// lifecycle transition. current == next is always allowed (no change).
func ValidateStatusTransition(current, next models.RoomStatus) error {
	if current == next {
		return nil
	}

	for _, allowed := range statusFlow[current] {
		if next == allowed {
			return nil
		}
	}

	return &domain.IllegalTransitionError{From: current, To: next}
}

// CheckRoomPermission checks whether userID may manage a room created by
// creatorID. Only the creator may advance a room's lifecycle.
func CheckRoomPermission(userID, creatorID string) error {
	if userID != creatorID {
		return domain.ErrPermissionDenied
	}
	return nil
}

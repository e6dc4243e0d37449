package rules

import (
	"room-match-backend/internal/domain"
	"room-match-backend/internal/models"
)

// ValidateSwipe checks that a swipe record carries both identities.
func ValidateSwipe(swipe *models.Swipe) error {
	if swipe == nil {
		return &domain.ValidationError{Field: "swipe", Reason: "is required"}
	}
	if swipe.UserID == "" {
		return &domain.ValidationError{Field: "user_id", Reason: "is required"}
	}
	if swipe.TargetID == "" {
		return &domain.ValidationError{Field: "target_id", Reason: "is required"}
	}
	return nil
}

// IsMutualMatch reports whether two swipes form a mutual match: both must
// be present and both votes must be positive. Symmetric in its arguments.
func IsMutualMatch(current, reciprocal *models.Swipe) bool {
	if current == nil || reciprocal == nil {
		return false
	}
	return current.Vote && reciprocal.Vote
}

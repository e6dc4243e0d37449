package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-match-backend/internal/domain"
	"room-match-backend/internal/models"
)

var allStatuses = []models.RoomStatus{
	models.StatusWaiting,
	models.StatusReady,
	models.StatusPlaying,
	models.StatusFinished,
}

func TestValidateStatusTransition_AllowedTransitions(t *testing.T) {
	allowed := []struct {
		from models.RoomStatus
		to   models.RoomStatus
	}{
		{models.StatusWaiting, models.StatusReady},
		{models.StatusReady, models.StatusPlaying},
		{models.StatusReady, models.StatusWaiting},
		{models.StatusPlaying, models.StatusFinished},
		{models.StatusFinished, models.StatusWaiting},
	}

	for _, tc := range allowed {
		assert.NoError(t, ValidateStatusTransition(tc.from, tc.to),
			"%s -> %s should be allowed", tc.from, tc.to)
	}
}

func TestValidateStatusTransition_SelfLoopIsNoOp(t *testing.T) {
	for _, s := range allStatuses {
		assert.NoError(t, ValidateStatusTransition(s, s))
	}
}

func TestValidateStatusTransition_RejectsEverythingElse(t *testing.T) {
	allowed := map[models.RoomStatus][]models.RoomStatus{
		models.StatusWaiting:  {models.StatusReady},
		models.StatusReady:    {models.StatusPlaying, models.StatusWaiting},
		models.StatusPlaying:  {models.StatusFinished},
		models.StatusFinished: {models.StatusWaiting},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if from == to {
				continue
			}
			legal := false
			for _, next := range allowed[from] {
				if next == to {
					legal = true
				}
			}
			if legal {
				continue
			}

			err := ValidateStatusTransition(from, to)
			require.Error(t, err, "%s -> %s should be rejected", from, to)

			var ite *domain.IllegalTransitionError
			require.True(t, errors.As(err, &ite))
			assert.Equal(t, from, ite.From)
			assert.Equal(t, to, ite.To)
		}
	}
}

func TestValidateStatusTransition_UnknownStatus(t *testing.T) {
	err := ValidateStatusTransition(models.RoomStatus("limbo"), models.StatusReady)
	assert.Error(t, err)
}

func TestCheckRoomPermission(t *testing.T) {
	assert.NoError(t, CheckRoomPermission("u1", "u1"))

	err := CheckRoomPermission("u2", "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

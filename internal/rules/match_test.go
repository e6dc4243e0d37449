package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-match-backend/internal/domain"
	"room-match-backend/internal/models"
)

func TestValidateSwipe(t *testing.T) {
	tests := []struct {
		name    string
		swipe   *models.Swipe
		wantErr string
	}{
		{"valid positive", &models.Swipe{UserID: "a", TargetID: "b", Vote: true}, ""},
		{"valid negative", &models.Swipe{UserID: "a", TargetID: "b", Vote: false}, ""},
		{"nil swipe", nil, "swipe"},
		{"missing user", &models.Swipe{TargetID: "b", Vote: true}, "user_id"},
		{"missing target", &models.Swipe{UserID: "a", Vote: true}, "target_id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSwipe(tc.swipe)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.wantErr, ve.Field)
		})
	}
}

func TestIsMutualMatch(t *testing.T) {
	like := func(from, to string, vote bool) *models.Swipe {
		return &models.Swipe{UserID: from, TargetID: to, Vote: vote}
	}

	ab := like("a", "b", true)
	ba := like("b", "a", true)
	abNo := like("a", "b", false)
	baNo := like("b", "a", false)

	assert.True(t, IsMutualMatch(ab, ba))
	assert.True(t, IsMutualMatch(ba, ab), "mutuality is symmetric")

	assert.False(t, IsMutualMatch(ab, nil), "absent reciprocal swipe")
	assert.False(t, IsMutualMatch(nil, ba))
	assert.False(t, IsMutualMatch(ab, baNo))
	assert.False(t, IsMutualMatch(abNo, ba))
	assert.False(t, IsMutualMatch(abNo, baNo))
}

func TestNormalizePairConverges(t *testing.T) {
	a1, b1 := models.NormalizePair("alice", "bob")
	a2, b2 := models.NormalizePair("bob", "alice")

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.Less(t, a1, b1)
}

package services

import (
	"context"
	"fmt"
	"time"

	"room-match-backend/internal/models"
	"room-match-backend/internal/rules"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MatchNotifier delivers best-effort match alerts. A failed or absent
// notifier never fails the swipe that produced the match.
type MatchNotifier interface {
	NotifyMatch(ctx context.Context, match *models.Match)
}

// MatchService records swipes and detects mutual matches.
type MatchService struct {
	swipes   SwipeStore
	matches  MatchStore
	notifier MatchNotifier
}

// NewMatchService creates a new match service. notifier may be nil.
func NewMatchService(swipes SwipeStore, matches MatchStore, notifier MatchNotifier) *MatchService {
	return &MatchService{
		swipes:   swipes,
		matches:  matches,
		notifier: notifier,
	}
}

// SwipeResult reports the outcome of recording a swipe.
type SwipeResult struct {
	Matched bool          `json:"matched"`
	Match   *models.Match `json:"match,omitempty"`
}

// RecordSwipe upserts the voter's swipe on the target and, on a positive
// vote, checks for a reciprocal positive swipe. A mutual pair converges
// on one match record: the pair key is normalized before the write and a
// duplicate creation attempt collapses onto the existing record.
func (s *MatchService) RecordSwipe(ctx context.Context, voterID, targetID string, vote bool) (*SwipeResult, error) {
	swipe := &models.Swipe{
		UserID:    voterID,
		TargetID:  targetID,
		Vote:      vote,
		CreatedAt: time.Now(),
	}
	if err := rules.ValidateSwipe(swipe); err != nil {
		return nil, err
	}

	if err := s.swipes.Upsert(ctx, swipe); err != nil {
		return nil, fmt.Errorf("failed to record swipe: %w", err)
	}

	if !vote {
		return &SwipeResult{Matched: false}, nil
	}

	reciprocal, err := s.swipes.GetPositive(ctx, targetID, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to check reciprocal swipe: %w", err)
	}
	if !rules.IsMutualMatch(swipe, reciprocal) {
		return &SwipeResult{Matched: false}, nil
	}

	userA, userB := models.NormalizePair(voterID, targetID)
	match := &models.Match{
		ID:        uuid.New().String(),
		UserA:     userA,
		UserB:     userB,
		CreatedAt: time.Now(),
	}

	created, err := s.matches.CreateIfAbsent(ctx, match)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	if created {
		log.Info().
			Str("user_a", userA).
			Str("user_b", userB).
			Msg("Mutual match created")
		if s.notifier != nil {
			s.notifier.NotifyMatch(ctx, match)
		}
	}

	return &SwipeResult{Matched: true, Match: match}, nil
}

// ListMatches retrieves all matches involving a user.
func (s *MatchService) ListMatches(ctx context.Context, userID string) ([]models.Match, error) {
	return s.matches.ListByUser(ctx, userID)
}

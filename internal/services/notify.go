package services

import (
	"context"
	"fmt"

	"room-match-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

// PushNotifier sends "it's a match" alerts over APNs to both parties of a
// new match. Delivery is best effort.
type PushNotifier struct {
	client *apns2.Client
	topic  string
	users  *UserService
}

// NewPushNotifier creates a notifier from a .p12 certificate.
func NewPushNotifier(certPath, certPassword, topic string, production bool, users *UserService) (*PushNotifier, error) {
	cert, err := certificate.FromP12File(certPath, certPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &PushNotifier{client: client, topic: topic, users: users}, nil
}

// NotifyMatch pushes a match alert to both users that have a registered
// device token.
func (n *PushNotifier) NotifyMatch(ctx context.Context, match *models.Match) {
	for _, userID := range []string{match.UserA, match.UserB} {
		n.notifyUser(ctx, userID, match)
	}
}

func (n *PushNotifier) notifyUser(ctx context.Context, userID string, match *models.Match) {
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Skipping match push, user lookup failed")
		return
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return
	}

	p := payload.NewPayload().
		AlertTitle("It's a match!").
		AlertBody("Someone you liked has liked you back").
		Custom("match_id", match.ID)

	notification := &apns2.Notification{
		DeviceToken: *user.PushToken,
		Topic:       n.topic,
		Payload:     p,
	}

	res, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send match push")
		return
	}
	if !res.Sent() {
		log.Warn().
			Str("user_id", userID).
			Int("status", res.StatusCode).
			Str("reason", res.Reason).
			Msg("Match push rejected")
	}
}

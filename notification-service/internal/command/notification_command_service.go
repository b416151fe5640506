package command

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/events"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/shared/utils"
	"github.com/rs/zerolog/log"
)

// NotificationWriter persists queued notifications. Saving an id twice must
// be a no-op.
type NotificationWriter interface {
	Save(ctx context.Context, n *models.Notification) error
}

// NotificationCommandService turns stream events into queued notifications.
type NotificationCommandService struct {
	store NotificationWriter
}

func NewNotificationCommandService(store NotificationWriter) *NotificationCommandService {
	return &NotificationCommandService{store: store}
}

// HandleEvent is the Redis stream subscriber handler. Payloads that cannot be
// decoded are logged and acknowledged; store failures are returned so the
// entry stays pending and is retried.
func (s *NotificationCommandService) HandleEvent(ctx context.Context, event events.Event) error {
	var n *models.Notification
	switch event.Type {
	case events.NotificationRequested:
		var data events.NotificationRequestedEvent
		if err := event.Decode(&data); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("dropping malformed notification event")
			return nil
		}
		n = newNotification(event, data.UserID, data.Type, data.Message)
	case events.UserRegistered:
		var data events.UserRegisteredEvent
		if err := event.Decode(&data); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("dropping malformed user event")
			return nil
		}
		n = newNotification(event, data.UserID, models.NotificationUserRegistered,
			fmt.Sprintf("Welcome to MiniInstaPay, %s!", data.Name))
	default:
		log.Debug().Str("type", event.Type).Msg("ignoring event")
		return nil
	}

	if n.UserID == "" || n.Type == "" {
		log.Warn().Str("event_id", event.ID).Msg("dropping notification without recipient or type")
		return nil
	}
	if err := s.store.Save(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification %s: %w", n.ID, err)
	}
	log.Debug().Str("notification_id", n.ID).Str("user_id", n.UserID).Str("type", n.Type).Msg("notification queued")
	return nil
}

// The id derives from the event id so redelivery does not queue duplicates.
func newNotification(event events.Event, userID, kind, message string) *models.Notification {
	id := "ntf-" + event.ID
	if event.ID == "" {
		id = utils.GenerateID("ntf")
	}
	createdAt := event.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &models.Notification{
		ID:        id,
		UserID:    userID,
		Type:      kind,
		Message:   message,
		CreatedAt: createdAt,
	}
}

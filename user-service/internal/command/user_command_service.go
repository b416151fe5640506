package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/events"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/shared/utils"
	"github.com/rs/zerolog/log"
)

// UserWriter persists new users.
type UserWriter interface {
	Create(ctx context.Context, user *models.User) error
}

// UserViewCache refreshes the read model other services resolve users from.
type UserViewCache interface {
	CacheUserView(ctx context.Context, view *models.UserView)
}

// UserCommandService writes user state and keeps the Redis read model up to
// date.
type UserCommandService struct {
	writeRepo UserWriter
	views     UserViewCache
	publisher events.Bus
	now       func() time.Time
}

func NewUserCommandService(writeRepo UserWriter, views UserViewCache, publisher events.Bus) *UserCommandService {
	return &UserCommandService{
		writeRepo: writeRepo,
		views:     views,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterUser stores a new user with a bcrypt password hash. Emails are
// compared case-insensitively; a taken email fails with ErrEmailTaken.
func (s *UserCommandService) RegisterUser(ctx context.Context, cmd cqrs.RegisterUserCommand) (*models.UserView, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           utils.GenerateID("usr"),
		Name:         strings.TrimSpace(cmd.Name),
		Email:        strings.ToLower(strings.TrimSpace(cmd.Email)),
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	if err := s.writeRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	view := models.NewUserView(user)
	s.views.CacheUserView(ctx, view)
	if err := s.publisher.Publish(ctx, events.UserEventsStream, events.UserRegistered, events.UserRegisteredEvent{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to publish user.registered event")
	}

	log.Info().Str("user_id", user.ID).Msg("user registered")
	return view, nil
}

package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/events"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/user-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	mu        sync.Mutex
	published []events.UserRegisteredEvent
	err       error
}

func (b *recordingBus) Publish(_ context.Context, topic, eventType string, data any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if topic == events.UserEventsStream && eventType == events.UserRegistered {
		b.published = append(b.published, data.(events.UserRegisteredEvent))
	}
	return nil
}

type recordingCache struct {
	views []*models.UserView
}

func (c *recordingCache) CacheUserView(_ context.Context, view *models.UserView) {
	c.views = append(c.views, view)
}

func TestRegisterUser(t *testing.T) {
	store := repository.NewMemoryStore()
	cache := &recordingCache{}
	bus := &recordingBus{}
	svc := NewUserCommandService(store, cache, bus)

	view, err := svc.RegisterUser(context.Background(), cqrs.RegisterUserCommand{
		Name: " Ada ", Email: "Ada@Example.com ", Password: "password123",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^usr-`, view.ID)
	assert.Equal(t, "Ada", view.Name)
	assert.Equal(t, "ada@example.com", view.Email)

	stored, err := store.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", stored.PasswordHash)

	require.Len(t, cache.views, 1)
	assert.Equal(t, view.ID, cache.views[0].ID)
	require.Len(t, bus.published, 1)
	assert.Equal(t, view.ID, bus.published[0].UserID)
}

func TestRegisterUserRejectsTakenEmail(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewUserCommandService(store, &recordingCache{}, &recordingBus{})

	_, err := svc.RegisterUser(context.Background(), cqrs.RegisterUserCommand{Name: "A", Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	_, err = svc.RegisterUser(context.Background(), cqrs.RegisterUserCommand{Name: "B", Email: "A@EXAMPLE.COM", Password: "password456"})
	assert.ErrorIs(t, err, errs.ErrEmailTaken)
}

func TestRegisterUserSurvivesPublishFailure(t *testing.T) {
	svc := NewUserCommandService(repository.NewMemoryStore(), &recordingCache{}, &recordingBus{err: errors.New("redis down")})

	view, err := svc.RegisterUser(context.Background(), cqrs.RegisterUserCommand{Name: "A", Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
}

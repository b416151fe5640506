package repository

import (
	"context"

	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	sharedredis "github.com/ahmedsenousy01/mini-instapay/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

// UserReadRepository uses Redis as the primary read store and falls back to
// PostgreSQL on a miss. Views never expire: the notification service resolves
// recipients from the same keys.
type UserReadRepository struct {
	users *UserWriteRepository
	cache *sharedredis.ViewCache[models.UserView]
}

func NewUserReadRepository(users *UserWriteRepository, redisClient *goredis.Client) *UserReadRepository {
	return &UserReadRepository{
		users: users,
		cache: sharedredis.NewViewCache[models.UserView](redisClient, sharedredis.UserViewPrefix, 0),
	}
}

func (r *UserReadRepository) GetByID(ctx context.Context, id string) (*models.UserView, error) {
	if view, ok := r.cache.Get(ctx, id); ok {
		return view, nil
	}
	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := models.NewUserView(user)
	r.cache.Backfill(ctx, view.ID, view)
	return view, nil
}

// CacheUserView stores or refreshes the Redis read model for a user.
func (r *UserReadRepository) CacheUserView(ctx context.Context, view *models.UserView) {
	r.cache.Set(ctx, view.ID, view)
}

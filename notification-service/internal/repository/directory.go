package repository

import (
	"context"

	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	sharedredis "github.com/ahmedsenousy01/mini-instapay/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

// UserDirectory resolves recipients from the user read model the user
// service keeps in Redis.
type UserDirectory struct {
	cache *sharedredis.ViewCache[models.UserView]
}

func NewUserDirectory(redisClient *goredis.Client) *UserDirectory {
	return &UserDirectory{
		cache: sharedredis.NewViewCache[models.UserView](redisClient, sharedredis.UserViewPrefix, 0),
	}
}

func (d *UserDirectory) Lookup(ctx context.Context, userID string) (*models.UserView, bool) {
	return d.cache.Get(ctx, userID)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	sharedredis "github.com/ahmedsenousy01/mini-instapay/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

// AccountReadRepository treats Redis as the read model and falls back to
// PostgreSQL, warming the cache on a cold read unless a commit got there
// first. Cached balances expire after ttl so a missed refresh cannot pin a
// stale balance.
type AccountReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.AccountView]
}

func NewAccountReadRepository(db *sql.DB, redisClient *goredis.Client, ttl time.Duration) *AccountReadRepository {
	return &AccountReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.AccountView](redisClient, sharedredis.AccountViewPrefix, ttl),
	}
}

func (r *AccountReadRepository) GetByID(ctx context.Context, id string) (*models.AccountView, error) {
	if view, ok := r.cache.Get(ctx, id); ok {
		return view, nil
	}

	var view models.AccountView
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, currency, balance, created_at
		FROM accounts
		WHERE id = $1
	`, id).Scan(&view.ID, &view.UserID, &view.Currency, &view.Balance, &view.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrAccountNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}

	r.cache.Backfill(ctx, view.ID, &view)
	return &view, nil
}

// ListByUserID always reads PostgreSQL; listings are not cached.
func (r *AccountReadRepository) ListByUserID(ctx context.Context, userID string) ([]models.AccountView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, currency, balance, created_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	views := []models.AccountView{}
	for rows.Next() {
		var view models.AccountView
		if err := rows.Scan(&view.ID, &view.UserID, &view.Currency, &view.Balance, &view.CreatedAt); err != nil {
			return nil, translateError(err)
		}
		views = append(views, view)
	}
	return views, translateError(rows.Err())
}

// CacheAccountView refreshes the read model after a committed mutation.
func (r *AccountReadRepository) CacheAccountView(ctx context.Context, view *models.AccountView) {
	r.cache.Set(ctx, view.ID, view)
}

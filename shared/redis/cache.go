package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ViewCache is a generic JSON-backed Redis cache for read model projections.
// Keys are prefix+id; a zero TTL keeps keys until they are overwritten.
type ViewCache[T any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *ViewCache[T]) key(id string) string { return c.prefix + id }

// Get returns (nil, false) on a miss, a Redis failure or a payload that no
// longer decodes into T. Callers fall back to the store.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (*T, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			log.Warn().Err(err).Str("key", c.key(id)).Msg("view cache read failed")
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		log.Warn().Err(err).Str("key", c.key(id)).Msg("view cache entry undecodable")
		return nil, false
	}
	return &v, true
}

// Set stores value under id. Failures are logged, a missed cache write only
// costs a store read later.
func (c *ViewCache[T]) Set(ctx context.Context, id string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", c.key(id)).Msg("view cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.key(id)).Msg("view cache write failed")
	}
}

// Backfill stores value only when id has no entry yet. Cold reads use it so
// a view loaded before a concurrent commit cannot replace the view that
// commit wrote.
func (c *ViewCache[T]) Backfill(ctx context.Context, id string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", c.key(id)).Msg("view cache marshal failed")
		return
	}
	if err := c.client.SetNX(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.key(id)).Msg("view cache backfill failed")
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.key(id)).Msg("view cache delete failed")
	}
}

package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	sharedredis "github.com/ahmedsenousy01/mini-instapay/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotencyStore is satisfied by redis.IdempotencyStore.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*sharedredis.CachedResponse, error)
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Save(ctx context.Context, key string, resp sharedredis.CachedResponse, ttl time.Duration) error
}

type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped per user and route. Responses below 500 are kept for ttl;
// server errors are not, so the client may retry. A store outage fails open.
func Idempotency(store IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}

		userID, _ := GetUserID(c)
		scoped := userID + ":" + c.Request.Method + ":" + c.FullPath() + ":" + key
		ctx := c.Request.Context()

		cached, err := store.Get(ctx, scoped)
		if err != nil {
			log.Error().Err(err).Msg("idempotency lookup failed, continuing without it")
			c.Next()
			return
		}
		if cached != nil {
			replay(c, cached)
			return
		}

		reserved, err := store.Reserve(ctx, scoped, 30*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("idempotency reservation failed, continuing without it")
			c.Next()
			return
		}
		if !reserved {
			RespondWithAppError(c, &errs.Error{Kind: errs.KindConflict, Code: "REQUEST_IN_PROGRESS", Message: "a request with this idempotency key is already being processed"})
			c.Abort()
			return
		}
		defer func() {
			if err := store.Release(context.WithoutCancel(ctx), scoped); err != nil {
				log.Warn().Err(err).Msg("failed to release idempotency reservation")
			}
		}()

		// The holder of the previous reservation may have stored its response
		// between our lookup and our reservation.
		cached, err = store.Get(ctx, scoped)
		if err != nil {
			log.Error().Err(err).Msg("idempotency lookup failed, continuing without it")
			c.Next()
			return
		}
		if cached != nil {
			replay(c, cached)
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder
		c.Next()

		status := recorder.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		err = store.Save(context.WithoutCancel(ctx), scoped, sharedredis.CachedResponse{
			StatusCode:  status,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.Bytes(),
		}, ttl)
		if err != nil {
			log.Error().Err(err).Msg("failed to store idempotent response")
		}
	}
}

func replay(c *gin.Context, cached *sharedredis.CachedResponse) {
	c.Header("X-Idempotency-Hit", "true")
	c.Data(cached.StatusCode, cached.ContentType, cached.Body)
	c.Abort()
}

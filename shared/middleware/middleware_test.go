package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	sharedredis "github.com/ahmedsenousy01/mini-instapay/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	MustInitJWTSecret("test-secret")
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := IssueToken("usr-001", "a@example.com", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken("usr-001", "a@example.com", -time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		id, _ := GetUserID(c)
		c.String(http.StatusOK, id)
	})

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.expectedStatus {
			t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
		}
		if tt.expectedStatus == http.StatusOK {
			assert.Equal(t, "usr-001", w.Body.String())
		}
	}
}

func TestRespondWithAppError(t *testing.T) {
	tests := []struct {
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{errs.ErrSameAccount, http.StatusBadRequest, "SAME_ACCOUNT"},
		{errs.ErrInvalidDateRange, http.StatusBadRequest, "INVALID_DATE_RANGE"},
		{errs.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{errs.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
		{errs.ErrNotCancellable, http.StatusConflict, "NOT_CANCELLABLE"},
		{errs.ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
		{errs.Retryable(context.DeadlineExceeded), http.StatusServiceUnavailable, "RETRYABLE"},
		{errors.New("pq: secret detail"), http.StatusInternalServerError, "DATABASE_ERROR"},
	}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) { RespondWithAppError(c, tt.err) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(t, tt.expectedStatus, w.Code, tt.expectedCode)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tt.expectedCode, body["error"])
		assert.NotContains(t, body["message"], "secret detail")
	}
}

type memoryIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]sharedredis.CachedResponse
	locks     map[string]bool
	failGet   bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{responses: map[string]sharedredis.CachedResponse{}, locks: map[string]bool{}}
}

func (s *memoryIdempotencyStore) Get(_ context.Context, key string) (*sharedredis.CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("redis down")
	}
	if r, ok := s.responses[key]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *memoryIdempotencyStore) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] {
		return false, nil
	}
	s.locks[key] = true
	return true, nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

func (s *memoryIdempotencyStore) Save(_ context.Context, key string, resp sharedredis.CachedResponse, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[key] = resp
	return nil
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userId", "usr-001"); c.Next() })
	r.POST("/v1/transfers", Idempotency(store, time.Hour), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/transfers", nil)
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send("k1")
	second := send("k1")
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))
	assert.Equal(t, 1, calls)

	send("k2")
	send("")
	assert.Equal(t, 3, calls)
	assert.Empty(t, store.locks)
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newMemoryIdempotencyStore()
	store.locks["usr-001:POST:/v1/transfers:k1"] = true

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userId", "usr-001"); c.Next() })
	r.POST("/v1/transfers", Idempotency(store, time.Hour), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/transfers", nil)
	req.Header.Set(IdempotencyKeyHeader, "k1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// staleLookupStore answers the first lookup with nothing but only after
// beforeFirstMiss has run, reproducing a lookup that raced a finishing request.
type staleLookupStore struct {
	*memoryIdempotencyStore
	missed          bool
	beforeFirstMiss func()
}

func (s *staleLookupStore) Get(ctx context.Context, key string) (*sharedredis.CachedResponse, error) {
	if !s.missed {
		s.missed = true
		s.beforeFirstMiss()
		return nil, nil
	}
	return s.memoryIdempotencyStore.Get(ctx, key)
}

func TestIdempotencyRechecksAfterReservation(t *testing.T) {
	calls := 0
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userId", "usr-001"); c.Next() })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/transfers", nil)
		req.Header.Set(IdempotencyKeyHeader, "k1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	var first *httptest.ResponseRecorder
	store := &staleLookupStore{memoryIdempotencyStore: newMemoryIdempotencyStore()}
	store.beforeFirstMiss = func() { first = send() }

	r.POST("/v1/transfers", Idempotency(store, time.Hour), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})

	second := send()
	require.NotNil(t, first)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))
	assert.Empty(t, store.locks)
}

func TestIdempotencyFailsOpen(t *testing.T) {
	store := newMemoryIdempotencyStore()
	store.failGet = true

	r := gin.New()
	r.POST("/x", Idempotency(store, time.Hour), func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(IdempotencyKeyHeader, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestLoggingMiddlewareEchoesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(LoggingMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

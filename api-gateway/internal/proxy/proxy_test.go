package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer reports which service answered and what it received.
func echoServer(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service":   name,
			"path":      r.URL.Path,
			"query":     r.URL.RawQuery,
			"userId":    r.Header.Get(UserIDHeader),
			"requestId": r.Header.Get(middleware.RequestIDHeader),
			"auth":      r.Header.Get("Authorization"),
		})
	}))
}

func upstream(t *testing.T, name, url string) *Upstream {
	t.Helper()
	u, err := NewUpstream(name, url, time.Second)
	require.NoError(t, err)
	return u
}

func newTestGateway(t *testing.T) *gin.Engine {
	t.Helper()
	users, txs, reports := echoServer("users"), echoServer("transactions"), echoServer("reports")
	t.Cleanup(func() { users.Close(); txs.Close(); reports.Close() })

	gin.SetMode(gin.TestMode)
	middleware.MustInitJWTSecret("gateway-test-secret")
	r := gin.New()
	r.Use(middleware.LoggingMiddleware())
	Register(r, Upstreams{
		Users:        upstream(t, "users", users.URL),
		Transactions: upstream(t, "transactions", txs.URL),
		Reports:      upstream(t, "reports", reports.URL),
	})
	return r
}

func TestRouting(t *testing.T) {
	router := newTestGateway(t)
	token, err := middleware.IssueToken("usr-001", "ada@example.com", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name            string
		method          string
		url             string
		token           string
		expectedStatus  int
		expectedService string
	}{
		{"login is public", http.MethodPost, "/v1/auth/login", "", http.StatusOK, "users"},
		{"registration is public", http.MethodPost, "/v1/users", "", http.StatusOK, "users"},
		{"me needs a token", http.MethodGet, "/v1/users/me", "", http.StatusUnauthorized, ""},
		{"me", http.MethodGet, "/v1/users/me", token, http.StatusOK, "users"},
		{"accounts", http.MethodGet, "/v1/accounts", token, http.StatusOK, "transactions"},
		{"transfer", http.MethodPost, "/v1/transfers", token, http.StatusOK, "transactions"},
		{"deposit", http.MethodPost, "/v1/funding/deposit", token, http.StatusOK, "transactions"},
		{"cancel", http.MethodPost, "/v1/transactions/txn-1/cancel", token, http.StatusOK, "transactions"},
		{"transfer needs a token", http.MethodPost, "/v1/transfers", "", http.StatusUnauthorized, ""},
		{"garbage token", http.MethodGet, "/v1/accounts", "garbage", http.StatusUnauthorized, ""},
		{"account report", http.MethodGet, "/v1/reports/accounts/acc-1?startDate=2024-01-01&endDate=2024-01-31", token, http.StatusOK, "reports"},
		{"unknown route", http.MethodGet, "/v1/unknown", token, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, tt.url, strings.NewReader("{}"))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedService == "" {
				return
			}
			var echoed map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &echoed))
			assert.Equal(t, tt.expectedService, echoed["service"])
		})
	}
}

func TestForwardsIdentityAndRequestID(t *testing.T) {
	router := newTestGateway(t)
	token, _ := middleware.IssueToken("usr-001", "ada@example.com", time.Hour)

	req, _ := http.NewRequest(http.MethodGet, "/v1/transactions?type=incoming&page=2", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(UserIDHeader, "usr-spoofed")
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var echoed map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &echoed))
	assert.Equal(t, "/v1/transactions", echoed["path"])
	assert.Equal(t, "type=incoming&page=2", echoed["query"])
	assert.Equal(t, "usr-001", echoed["userId"])
	assert.Equal(t, "req-123", echoed["requestId"])
	assert.Equal(t, "Bearer "+token, echoed["auth"])
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
}

func TestUnreachableUpstream(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/users", upstream(t, "users", deadURL).Handler())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/v1/users", strings.NewReader("{}"))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "BAD_GATEWAY")
}

// Package proxy forwards gateway requests to the backing services.
package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	UserIDHeader    = "X-User-ID"
	UserEmailHeader = "X-User-Email"
)

// Upstream is one backing service behind the gateway.
type Upstream struct {
	name  string
	proxy *httputil.ReverseProxy
}

// NewUpstream builds a reverse proxy to baseURL. Requests keep their path and
// query; the timeout bounds waiting for response headers.
func NewUpstream(name, baseURL string, timeout time.Duration) (*Upstream, error) {
	target, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, err
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	rp.Transport = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	// The gateway already stamped the request id on the response.
	rp.ModifyResponse = func(resp *http.Response) error {
		resp.Header.Del(middleware.RequestIDHeader)
		return nil
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error().Err(err).Str("upstream", name).Str("path", r.URL.Path).
			Str("request_id", r.Header.Get(middleware.RequestIDHeader)).Msg("error proxying request")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(gin.H{"error": "BAD_GATEWAY", "message": "Service unavailable"})
	}
	return &Upstream{name: name, proxy: rp}, nil
}

// Handler forwards the request. Identity headers from the client are
// replaced by the ones derived from the verified token.
func (u *Upstream) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		req.Header.Del(UserIDHeader)
		req.Header.Del(UserEmailHeader)
		if userID, ok := middleware.GetUserID(c); ok {
			req.Header.Set(UserIDHeader, userID)
		}
		if email, ok := c.Get("email"); ok {
			if s, ok := email.(string); ok && s != "" {
				req.Header.Set(UserEmailHeader, s)
			}
		}
		if requestID, ok := c.Get("requestId"); ok {
			if s, ok := requestID.(string); ok {
				req.Header.Set(middleware.RequestIDHeader, s)
			}
		}

		u.proxy.ServeHTTP(c.Writer, req)
	}
}

// Upstreams groups the services the gateway routes to.
type Upstreams struct {
	Users        *Upstream
	Transactions *Upstream
	Reports      *Upstream
}

// Register mounts every public route. Only registration, login and token
// refresh are reachable without a token.
func Register(router gin.IRouter, up Upstreams) {
	auth := middleware.AuthMiddleware()

	router.POST("/v1/auth/login", up.Users.Handler())
	router.POST("/v1/auth/refresh", up.Users.Handler())
	router.POST("/v1/users", up.Users.Handler())
	router.GET("/v1/users/me", auth, up.Users.Handler())

	tx := up.Transactions.Handler()
	router.POST("/v1/accounts", auth, tx)
	router.GET("/v1/accounts", auth, tx)
	router.GET("/v1/accounts/:accountId", auth, tx)
	router.GET("/v1/accounts/:accountId/transactions", auth, tx)
	router.POST("/v1/transfers", auth, tx)
	router.POST("/v1/funding/deposit", auth, tx)
	router.POST("/v1/funding/withdraw", auth, tx)
	router.GET("/v1/transactions", auth, tx)
	router.GET("/v1/transactions/:transactionId", auth, tx)
	router.POST("/v1/transactions/:transactionId/cancel", auth, tx)

	reports := up.Reports.Handler()
	router.GET("/v1/reports/accounts/:accountId", auth, reports)
	router.GET("/v1/reports/users/:userId", auth, reports)
}

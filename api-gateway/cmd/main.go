package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/api-gateway/internal/proxy"
	"github.com/ahmedsenousy01/mini-instapay/shared/config"
	"github.com/ahmedsenousy01/mini-instapay/shared/logger"
	"github.com/ahmedsenousy01/mini-instapay/shared/metrics"
	"github.com/ahmedsenousy01/mini-instapay/shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const serviceName = "api-gateway"

func main() {
	config.Load()
	logger.Init(serviceName)
	middleware.MustInitJWTSecret(config.GetEnv("JWT_SECRET", ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := config.GetDuration("UPSTREAM_TIMEOUT", 30*time.Second)
	upstreams := proxy.Upstreams{
		Users:        mustUpstream("user-service", config.GetEnv("USER_SERVICE_URL", "http://localhost:8082"), timeout),
		Transactions: mustUpstream("transaction-service", config.GetEnv("TRANSACTION_SERVICE_URL", "http://localhost:8084"), timeout),
		Reports:      mustUpstream("reporting-service", config.GetEnv("REPORTING_SERVICE_URL", "http://localhost:8085"), timeout),
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(), metrics.Middleware(serviceName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})
	router.GET("/metrics", metrics.Handler())
	proxy.Register(router, upstreams)

	srv := &http.Server{
		Addr:              ":" + config.GetEnv("PORT", "8080"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("api gateway starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func mustUpstream(name, baseURL string, timeout time.Duration) *proxy.Upstream {
	u, err := proxy.NewUpstream(name, baseURL, timeout)
	if err != nil {
		log.Fatal().Err(err).Str("upstream", name).Msg("invalid upstream url")
	}
	return u
}

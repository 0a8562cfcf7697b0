package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apicore/internal/cache"
	intconfig "apicore/internal/config"
	router "apicore/internal/http"
	"apicore/internal/http/middleware"
	"apicore/internal/logging"
	"apicore/internal/metrics"
	"apicore/internal/repositories"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := intconfig.LoadEnv()
	if err != nil {
		return err
	}
	logger := logging.NewLogger(env.LogLevel, env.LogFormat)
	slog.SetDefault(logger)

	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	db, err := intconfig.ConnectDB(env)
	if err != nil {
		return err
	}
	defer intconfig.CloseDB()

	gdb, err := intconfig.OpenGorm(db)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	secret := env.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("JWT_SECRET not set, using an ephemeral secret")
	}

	limiter := middleware.NewIPRateLimiter(env.RateLimitPerMinute)
	pipeline := &middleware.Pipeline{
		Logger:        logger,
		Metrics:       m,
		Cache:         cache.NewMemoryStore(),
		Limiter:       limiter,
		Auth:          middleware.NewAuthenticator(secret, middleware.DefaultTokenTTL),
		Timeout:       env.RequestTimeout(),
		SlowThreshold: env.SlowRequestThreshold(),
		CacheTTL:      env.CacheTTL(),
		MaxBodyBytes:  env.MaxBodyBytes,
		Production:    env.Production(),
	}

	r := router.NewRouter(router.Deps{
		Env:      env,
		Logger:   logger,
		Pipeline: pipeline,
		Stores:   repositories.NewStores(db, gdb, logger, m),
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		// the pipeline may hold a request up to the largest X-Timeout
		WriteTimeout: middleware.MaxTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if limiter != nil {
		go sweepLimiter(ctx, limiter)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", env.AppAddr, "env", env.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

func sweepLimiter(ctx context.Context, l *middleware.IPRateLimiter) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.CleanupExpired()
		}
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

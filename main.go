package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/handlers"
	"github.com/presensync/presensync/backend/go-services/internal/attendance"
	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/internal/database"
	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/notifications"
	"github.com/presensync/presensync/backend/go-services/internal/oidc"
	"github.com/presensync/presensync/backend/go-services/internal/sessions"
	"github.com/presensync/presensync/backend/go-services/internal/storage"
	"github.com/presensync/presensync/backend/go-services/internal/tokens"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/metrics"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		logger.Fatalf("JWT_SECRET must be set")
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends := database.Open(ctx, cfg, 5)
	defer backends.Close(context.Background())

	r := gin.New()
	// Lightweight CORS for the browser client.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
	var authLimiter gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		if cfg.RateLimit.UseRedis && backends.Redis != nil {
			r.Use(middleware.RedisRateLimitMiddleware(backends.Redis, "api", cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
			authLimiter = middleware.RedisRateLimitMiddleware(backends.Redis, "auth", cfg.RateLimit.RPS/2, cfg.RateLimit.Burst/2+1, win)
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
			authLimiter = middleware.RateLimitMiddleware(cfg.RateLimit.RPS/2, cfg.RateLimit.Burst/2+1)
		}
		logger.Infof("rate limiter enabled (redis=%v)", cfg.RateLimit.UseRedis && backends.Redis != nil)
	}

	verifiers := middleware.ChainVerifier{tokens.NewVerifier(cfg)}
	kc, err := oidc.FromConfig(ctx, cfg.Keycloak)
	if err != nil {
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	} else if kc != nil {
		verifiers = append(verifiers, kc)
		logger.Infof("accepting Keycloak tokens from %s", oidc.IssuerURL(cfg.Keycloak))
	}

	var photos storage.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		m, err := storage.NewMinIOStorage(cfg.MinIO)
		if err != nil {
			logger.Warnf("photo uploads disabled: %v", err)
		} else {
			photos = m
		}
	}

	st := backends.Store
	notes := notifications.NewService(st)
	svcs := handlers.Services{
		Config:        cfg,
		Verifier:      verifiers,
		Auth:          auth.NewService(cfg, backends.Credentials, backends.Attempts),
		Sessions:      sessions.NewService(backends.Sessions),
		Mirror:        identity.NewMirror(st),
		Synchronizer:  identity.NewSynchronizer(st),
		Attendance:    attendance.NewService(st, cfg.Attendance),
		Notifications: notes,
		Streams:       notifications.NewManager(notes),
		Photos:        photos,
		AuthLimiter:   authLimiter,
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// 200 only when every configured dependency answers
	r.GET("/ready", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := backends.Ping(pctx)
		ready := true
		if cfg.MongoDB.URI != "" && !backends.MongoConnected {
			deps["mongodb"] = false
		}
		if cfg.Redis.Host != "" && !backends.RedisConnected {
			deps["redis"] = false
		}
		if cfg.Keycloak.URL != "" {
			deps["oidc"] = kc != nil
		}
		deps["storage"] = photos != nil || cfg.MinIO.Endpoint == ""
		for _, ok := range deps {
			if !ok {
				ready = false
			}
		}
		status, body := http.StatusOK, "ready"
		if !ready {
			status, body = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": body, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.Mount(r, svcs)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting presensync API on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown: %v", err)
	}
}

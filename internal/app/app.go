package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"card-admin/internal/config"
	"card-admin/internal/database"
	"card-admin/internal/handler"
	"card-admin/internal/metrics"
	"card-admin/internal/middleware"
	"card-admin/internal/ratelimit"
	"card-admin/internal/repository"
	"card-admin/internal/router"
	"card-admin/internal/security"
	"card-admin/internal/service"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBAutoMigrate {
		if err := db.Migrator().Up(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	cardRepo := repository.NewCardRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	slog.Info("database ready")

	hasher, err := security.NewPasswordHasher(cfg.BcryptCost, cfg.PasswordMinLength)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	tokens, err := security.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	cleanupFuncs := []func(){db.Close}

	limiter, closeLimiter, err := newLoginLimiter(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	if closeLimiter != nil {
		cleanupFuncs = append(cleanupFuncs, closeLimiter)
	}

	m := metrics.New()
	m.WatchPool(func() (int32, int32, int32) {
		stats := db.Stats()
		return stats.Total, stats.Acquired, stats.Idle
	})
	auditService := service.NewAuditService(auditRepo)
	authService := service.NewAuthService(userRepo, hasher, tokens, service.AuthOptions{
		RotateRefresh: cfg.JWTRotateRefresh,
		Limiter:       limiter,
		Audit:         auditService,
		Events:        m,
	})
	userService := service.NewUserService(userRepo, hasher, auditService)
	cardService := service.NewCardService(cardRepo, userRepo, auditService)

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:   handler.NewAuthHandler(authService, userService),
		User:   handler.NewUserHandler(userService),
		Card:   handler.NewCardHandler(cardService),
		Audit:  handler.NewAuditHandler(auditService, userService),
		Health: handler.NewHealthHandler(db),
	}, m)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		db:           db,
		cleanupFuncs: cleanupFuncs,
	}, nil
}

// newLoginLimiter returns the Redis-backed limiter when REDIS_ADDR is set so
// that attempt counts are shared between replicas.
func newLoginLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Info("login limiter using process memory")
		return ratelimit.NewMemory(cfg.LoginAttemptLimit, cfg.LoginAttemptWindow), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	slog.Info("login limiter using redis", "addr", cfg.RedisAddr)
	limiter := ratelimit.NewRedis(client, cfg.LoginAttemptLimit, cfg.LoginAttemptWindow, "")
	return limiter, func() { _ = client.Close() }, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

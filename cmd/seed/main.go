package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"card-admin/internal/config"
	"card-admin/internal/database"
	"card-admin/internal/logger"
	"card-admin/internal/repository"
	"card-admin/internal/security"
	"card-admin/internal/seed"
	"card-admin/internal/service"
)

func main() {
	username := flag.String("admin-username", envOr("SEED_ADMIN_USERNAME", "admin"), "administrator username")
	email := flag.String("admin-email", envOr("SEED_ADMIN_EMAIL", "admin@example.com"), "administrator email")
	password := flag.String("admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "administrator password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel))

	if !seed.AllowedEnv(cfg.AppEnv) {
		slog.Error("refusing to seed outside dev/test", "app_env", cfg.AppEnv)
		os.Exit(1)
	}
	if *password == "" {
		slog.Error("admin password is required (-admin-password or SEED_ADMIN_PASSWORD)")
		os.Exit(2)
	}

	if err := run(cfg, seed.Options{AdminUsername: *username, AdminEmail: *email, AdminPassword: *password}); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts seed.Options) error {
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrator().Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	hasher, err := security.NewPasswordHasher(cfg.BcryptCost, cfg.PasswordMinLength)
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(db.Pool)
	audit := service.NewAuditService(repository.NewAuditRepository(db.Pool))
	auth := service.NewAuthService(users, hasher, tokens, service.AuthOptions{Audit: audit})
	cards := service.NewCardService(repository.NewCardRepository(db.Pool), users, audit)

	result, err := seed.New(auth, users, cards).Run(ctx, opts)
	if err != nil {
		return err
	}

	slog.Info("seed complete",
		"admin_id", result.AdminID,
		"admin_created", result.AdminCreated,
		"cards_created", result.CardsCreated,
	)
	return nil
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"card-admin/internal/config"
	"card-admin/internal/database"
	"card-admin/internal/logger"
)

const usage = "usage: migrate up|down|status|version"

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel))

	ctx := context.Background()
	migrator := database.NewMigrator(cfg.DatabaseURL)

	switch os.Args[1] {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx)
	case "status":
		err = migrator.Status(ctx)
	case "version":
		var version int64
		version, err = migrator.Version(ctx)
		if err == nil {
			fmt.Println(version)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("migration failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrator applies the embedded goose migrations through a short-lived
// database/sql handle; the pgx pool itself is never handed to goose.
type Migrator struct {
	databaseURL string
}

func NewMigrator(databaseURL string) *Migrator {
	return &Migrator{databaseURL: databaseURL}
}

// Migrator returns a Migrator bound to the same database as the pool.
func (db *DB) Migrator() *Migrator {
	return NewMigrator(db.url)
}

func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, func(sqlDB *sql.DB) error {
		if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
		return nil
	})
}

func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, func(sqlDB *sql.DB) error {
		if err := goose.DownContext(ctx, sqlDB, migrationsDir); err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
		return nil
	})
}

func (m *Migrator) Status(ctx context.Context) error {
	return m.run(ctx, func(sqlDB *sql.DB) error {
		if err := goose.StatusContext(ctx, sqlDB, migrationsDir); err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		return nil
	})
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := m.run(ctx, func(sqlDB *sql.DB) error {
		v, err := goose.GetDBVersionContext(ctx, sqlDB)
		if err != nil {
			return fmt.Errorf("goose version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

func (m *Migrator) run(ctx context.Context, fn func(*sql.DB) error) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", m.databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migration connection: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return fn(sqlDB)
}

// gooseLogger routes goose output through slog.
type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

func (gooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

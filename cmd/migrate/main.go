package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Camiloez/postboard/internal/app/migrate"
	"github.com/Camiloez/postboard/internal/app/store"
	"github.com/Camiloez/postboard/pkg/config"
	"github.com/Camiloez/postboard/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	dir := flag.String("dir", "", "migrations directory (defaults to DB_MIGRATIONS_DIR)")
	flag.Parse()

	cfg := config.LoadAPIConfig()
	if *dir != "" {
		cfg.MigrationsDir = *dir
	}
	log := logger.New("migrate", slog.LevelInfo)

	if err := run(cfg, *command, *target, *timeout, log); err != nil {
		log.Error("migration command failed", "command", *command, "error", err)
		os.Exit(1)
	}
	log.Info("migration command completed", "command", *command)
}

func run(cfg config.APIConfig, command string, target int64, timeout time.Duration, log *slog.Logger) error {
	backend, err := store.Backend(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if backend != store.BackendPostgres {
		return fmt.Errorf("migrations apply to postgres only, DATABASE_URL selects %s", backend)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	runner, err := migrate.New(pool, cfg.MigrationsDir, log)
	if err != nil {
		return err
	}
	defer runner.Close()

	switch command {
	case "up":
		return runner.Ensure(ctx)
	case "down":
		return runner.Down(ctx, target)
	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			if s.Applied {
				fmt.Printf("%05d  applied  %s  %s\n", s.Version, s.AppliedAt.Format(time.RFC3339), s.Path)
			} else {
				fmt.Printf("%05d  pending  %-20s  %s\n", s.Version, "-", s.Path)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported command %q", command)
	}
}

// Package store opens the repository backend selected by the database URL scheme.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Camiloez/postboard/internal/app/migrate"
	"github.com/Camiloez/postboard/internal/repository"
	"github.com/Camiloez/postboard/internal/repository/memory"
	"github.com/Camiloez/postboard/internal/repository/mongodb"
	"github.com/Camiloez/postboard/internal/repository/postgres"
)

// Backend names.
const (
	BackendMongo    = "mongodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options configure Open.
type Options struct {
	URL            string
	DatabaseName   string
	MigrationsDir  string
	ConnectTimeout time.Duration
}

// ErrUnsupportedScheme is returned for database URLs no backend understands.
var ErrUnsupportedScheme = errors.New("store: unsupported database url scheme")

// Backend maps a database URL onto a backend name.
func Backend(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "memory":
		return BackendMemory, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
}

// Open connects to the configured database, waiting for it to come up within
// ConnectTimeout, and prepares its schema.
func Open(ctx context.Context, opts Options, log *slog.Logger) (repository.Store, error) {
	backend, err := Backend(opts.URL)
	if err != nil {
		return nil, err
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var st repository.Store
	switch backend {
	case BackendMongo:
		st, err = openMongo(ctx, opts)
	case BackendPostgres:
		st, err = openPostgres(ctx, opts)
	case BackendMemory:
		st = memory.New()
	}
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = timeout
	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			log.Warn("database not ready", "backend", backend, "attempt", attempt, "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		_ = st.Close(context.Background())
		return nil, fmt.Errorf("wait for %s: %w", backend, err)
	}

	if err := prepare(ctx, st, opts, log); err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	log.Info("database ready", "backend", backend)
	return st, nil
}

func openMongo(ctx context.Context, opts Options) (repository.Store, error) {
	return mongodb.Connect(ctx, opts.URL, opts.DatabaseName)
}

func openPostgres(ctx context.Context, opts Options) (repository.Store, error) {
	pool, err := pgxpool.New(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &postgresStore{Repository: postgres.New(pool), pool: pool}, nil
}

func prepare(ctx context.Context, st repository.Store, opts Options, log *slog.Logger) error {
	switch s := st.(type) {
	case *mongodb.Repository:
		return s.EnsureIndexes(ctx)
	case *postgresStore:
		runner, err := migrate.New(s.pool, opts.MigrationsDir, log)
		if err != nil {
			return fmt.Errorf("configure migrations: %w", err)
		}
		defer runner.Close()
		return runner.Ensure(ctx)
	}
	return nil
}

type postgresStore struct {
	*postgres.Repository
	pool *pgxpool.Pool
}

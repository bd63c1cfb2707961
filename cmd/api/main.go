package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Camiloez/postboard/internal/app/store"
	httpx "github.com/Camiloez/postboard/internal/http"
	"github.com/Camiloez/postboard/internal/reload"
	"github.com/Camiloez/postboard/internal/service/comment"
	"github.com/Camiloez/postboard/internal/service/events"
	"github.com/Camiloez/postboard/internal/service/post"
	"github.com/Camiloez/postboard/internal/ws"
	"github.com/Camiloez/postboard/pkg/config"
	"github.com/Camiloez/postboard/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()

	flags := flag.NewFlagSet("postboard-api", flag.ExitOnError)
	host := flags.String("host", cfg.Host, "bind host")
	port := flags.Int("port", cfg.Port, "bind port")
	reloadMode := flags.Bool("reload", false, "rebuild and restart on source changes")
	logConfig := flags.String("log-config", cfg.LogConfigPath, "logging configuration file")
	_ = flags.Parse(os.Args[1:])
	cfg.Host, cfg.Port, cfg.LogConfigPath = *host, *port, *logConfig

	log, err := logger.NewFromFile("api", cfg.LogConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load logging config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *reloadMode && !reload.IsChild() {
		sup := reload.New(reload.Options{
			Root: ".",
			Args: reload.StripReloadFlag(os.Args[1:]),
		}, logger.Component(log, "reload"))
		if err := sup.Run(ctx); err != nil {
			log.Error("reload supervisor failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, log); err != nil {
		log.Error("api server failed", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.APIConfig, log *slog.Logger) error {
	st, err := store.Open(ctx, store.Options{
		URL:            cfg.DatabaseURL,
		DatabaseName:   cfg.DatabaseName,
		MigrationsDir:  cfg.MigrationsDir,
		ConnectTimeout: cfg.ConnectTimeout,
	}, logger.Component(log, "store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Warn("close store", "error", err)
		}
	}()

	hub := ws.NewHub(cfg.EventBuffer)
	eventSvc := events.New(hub, logger.Component(log, "events"))
	postSvc := post.New(st, st, eventSvc, logger.Component(log, "posts"))
	commentSvc := comment.New(st, st, eventSvc, logger.Component(log, "comments"))

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router, err := httpx.NewRouter(logger.Component(log, "http"), postSvc, commentSvc, eventSvc, limiter, st.Ping, httpx.Options{
		AuthSecret:     cfg.AuthSecret,
		WriteLimit:     cfg.WriteRateLimit,
		ReadLimit:      cfg.ReadRateLimit,
		TrustForwarded: cfg.TrustForwarded,
	})
	if err != nil {
		limiter.Close()
		return err
	}
	defer router.Close()

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
		return nil
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Package reload rebuilds and restarts the API binary whenever its sources change.
package reload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Camiloez/postboard/internal/watch"
)

// ChildEnv marks a process started by the supervisor so it never supervises itself.
const ChildEnv = "POSTBOARD_RELOAD_CHILD"

// Options configure a Supervisor.
type Options struct {
	Root        string
	Package     string
	Args        []string
	GracePeriod time.Duration
	Debounce    time.Duration
	Output      io.Writer
}

// Supervisor owns at most one running child at a time.
type Supervisor struct {
	opts   Options
	logger *slog.Logger

	build   func(ctx context.Context, binary string) error
	command func(binary string, args []string) *exec.Cmd

	binary string
	child  *exec.Cmd
	exited chan error
}

// New prepares a supervisor for the package in opts.
func New(opts Options, log *slog.Logger) *Supervisor {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Package == "" {
		opts.Package = "./cmd/api"
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 5 * time.Second
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	s := &Supervisor{opts: opts, logger: log}
	s.build = s.goBuild
	s.command = func(binary string, args []string) *exec.Cmd {
		return exec.Command(binary, args...)
	}
	return s
}

// Run builds, starts and watches until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "postboard-reload-")
	if err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	defer os.RemoveAll(dir)
	s.binary = filepath.Join(dir, "postboard-api")

	w, err := watch.New(watch.Options{Root: s.opts.Root, Debounce: s.opts.Debounce}, s.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	changes := make(chan []string, 1)
	go func() {
		_ = w.Run(ctx, func(paths []string) {
			select {
			case changes <- paths:
			default:
			}
		})
	}()

	s.restart(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stop()
			return nil
		case paths := <-changes:
			s.logger.Info("sources changed, reloading", "files", len(paths), "first", paths[0])
			s.stop()
			s.restart(ctx)
		case err := <-s.exited:
			s.logger.Warn("api process exited", "error", err)
			s.child, s.exited = nil, nil
		}
	}
}

func (s *Supervisor) restart(ctx context.Context) {
	started := time.Now()
	if err := s.build(ctx, s.binary); err != nil {
		s.logger.Error("build failed, waiting for changes", "error", err)
		return
	}
	s.logger.Info("build finished", "duration", time.Since(started).Round(time.Millisecond))
	if err := s.start(); err != nil {
		s.logger.Error("start api process", "error", err)
	}
}

func (s *Supervisor) goBuild(ctx context.Context, binary string) error {
	cmd := exec.CommandContext(ctx, "go", "build", "-o", binary, s.opts.Package)
	cmd.Dir = s.opts.Root
	cmd.Stdout = s.opts.Output
	cmd.Stderr = s.opts.Output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build %s: %w", s.opts.Package, err)
	}
	return nil
}

func (s *Supervisor) start() error {
	cmd := s.command(s.binary, s.opts.Args)
	cmd.Env = append(os.Environ(), ChildEnv+"=1")
	cmd.Stdout = s.opts.Output
	cmd.Stderr = s.opts.Output
	if err := cmd.Start(); err != nil {
		return err
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()
	s.child, s.exited = cmd, exited
	s.logger.Info("api process started", "pid", cmd.Process.Pid)
	return nil
}

func (s *Supervisor) stop() {
	if s.child == nil {
		return
	}
	cmd, exited := s.child, s.exited
	s.child, s.exited = nil, nil

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("signal api process", "error", err)
	}
	timer := time.NewTimer(s.opts.GracePeriod)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		s.logger.Warn("api process ignored SIGTERM, killing", "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-exited
	}
}

// StripReloadFlag returns args without any form of the reload flag.
func StripReloadFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if strings.HasPrefix(arg, "-") && (name == "reload" || strings.HasPrefix(name, "reload=")) {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// IsChild reports whether this process was started by a supervisor.
func IsChild() bool {
	return os.Getenv(ChildEnv) != ""
}

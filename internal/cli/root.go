// Package cli implements the devstack command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Camiloez/postboard/internal/docker"
	"github.com/Camiloez/postboard/internal/runtime"
	"github.com/Camiloez/postboard/internal/runtime/kubernetes"
	"github.com/Camiloez/postboard/internal/runtime/local"
	"github.com/Camiloez/postboard/internal/stack"
	"github.com/Camiloez/postboard/pkg/config"
	"github.com/Camiloez/postboard/pkg/logger"
)

// Runtime names accepted by --runtime.
const (
	RuntimeDocker     = "docker"
	RuntimeKubernetes = "kubernetes"
)

// Execute runs the devstack command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(config.LoadStackConfig(), openRuntime)
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

type runtimeFactory func(ctx context.Context, a *app, wait bool) (runtime.Runtime, func(), error)

// app carries the resolved global flags into every subcommand.
type app struct {
	cfg        config.StackConfig
	file       string
	project    string
	runtime    string
	namespace  string
	debug      bool
	log        *slog.Logger
	newRuntime runtimeFactory
}

func newRootCmd(cfg config.StackConfig, newRuntime runtimeFactory) *cobra.Command {
	a := &app{cfg: cfg, newRuntime: newRuntime}

	cmd := &cobra.Command{
		Use:          "devstack",
		Short:        "Run the postboard stack on Docker or Kubernetes",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.runtime = strings.ToLower(strings.TrimSpace(a.runtime))
			if a.runtime != RuntimeDocker && a.runtime != RuntimeKubernetes {
				return fmt.Errorf("unknown runtime %q (want %s or %s)", a.runtime, RuntimeDocker, RuntimeKubernetes)
			}
			level := "info"
			if a.debug {
				level = "debug"
			}
			a.log = logger.FromConfig("devstack", logger.Config{Level: level, Format: logger.FormatText}, cmd.ErrOrStderr())
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.file, "file", "f", cfg.StackFile, "stack descriptor")
	flags.StringVarP(&a.project, "project", "p", cfg.ProjectName, "project name (defaults to the descriptor name)")
	flags.StringVar(&a.runtime, "runtime", cfg.Runtime, "runtime: docker or kubernetes")
	flags.StringVarP(&a.namespace, "namespace", "n", cfg.KubeNamespace, "kubernetes namespace")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		upCmd(a),
		downCmd(a),
		psCmd(a),
		restartCmd(a),
		configCmd(a),
		validateCmd(a),
		smokeCmd(a),
		tokenCmd(a),
	)
	return cmd
}

// loadStack reads the descriptor, falling back to the built-in default when the
// default file name is absent, and validates it.
func (a *app) loadStack() (*stack.Stack, error) {
	st, err := stack.Load(a.file)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && a.file == a.cfg.StackFile:
		wd, werr := os.Getwd()
		if werr != nil {
			return nil, werr
		}
		a.log.Debug("stack file not found, using default stack", "file", a.file, "dir", wd)
		st = stack.Default(wd)
	default:
		return nil, err
	}
	if strings.TrimSpace(a.project) != "" {
		st.Name = stack.SanitizeName(a.project)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}

func openRuntime(ctx context.Context, a *app, wait bool) (runtime.Runtime, func(), error) {
	switch a.runtime {
	case RuntimeKubernetes:
		opts := kubernetes.Options{DefaultVolumeSize: a.cfg.DefaultPVCSize}
		if wait {
			opts.ReadyTimeout = a.cfg.ReadyTimeout
		}
		rt, err := kubernetes.New(a.namespace, a.cfg.Kubeconfig, logger.Component(a.log, "kubernetes"), opts)
		if err != nil {
			return nil, nil, err
		}
		return rt, func() {}, nil
	default:
		client, err := docker.New(a.cfg.DockerHost)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		a.log.Debug("connected to docker", "host", client.Host())
		cleanup := func() {
			if err := client.Close(); err != nil {
				a.log.Debug("close docker client", "error", err)
			}
		}
		return local.New(client, logger.Component(a.log, "docker"), a.cfg.StopTimeout), cleanup, nil
	}
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

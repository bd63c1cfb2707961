package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Camiloez/postboard/internal/runtime"
	"github.com/Camiloez/postboard/internal/smoke"
	"github.com/Camiloez/postboard/internal/stack"
	"github.com/Camiloez/postboard/pkg/logger"
)

func upCmd(a *app) *cobra.Command {
	var opts runtime.UpOptions
	var wait bool

	c := &cobra.Command{
		Use:   "up",
		Short: "Create volumes, build or pull images, and start every service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.loadStack()
			if err != nil {
				return err
			}
			rt, cleanup, err := a.newRuntime(cmd.Context(), a, wait)
			if err != nil {
				return err
			}
			defer cleanup()

			opts.Output = cmd.OutOrStdout()
			started := time.Now()
			if err := rt.Up(cmd.Context(), st, opts); err != nil {
				return fmt.Errorf("up %s: %w", st.Name, err)
			}
			a.log.Info("stack started", "stack", st.Name, "runtime", a.runtime, "duration", time.Since(started).Round(time.Millisecond))

			if wait && a.runtime == RuntimeDocker {
				return a.runSmoke(cmd.Context(), cmd.OutOrStdout(), st, smoke.Options{Timeout: a.cfg.SmokeTimeout})
			}
			return nil
		},
	}

	c.Flags().BoolVar(&opts.Build, "build", false, "rebuild images of services with a build section")
	c.Flags().BoolVar(&opts.Pull, "pull", false, "pull images even when present locally")
	c.Flags().BoolVar(&wait, "wait", false, "wait until ports and healthchecks answer")
	return c
}

func smokeCmd(a *app) *cobra.Command {
	var opts smoke.Options

	c := &cobra.Command{
		Use:   "smoke",
		Short: "Check that published ports accept connections and healthchecks answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.loadStack()
			if err != nil {
				return err
			}
			return a.runSmoke(cmd.Context(), cmd.OutOrStdout(), st, opts)
		},
	}

	c.Flags().StringVar(&opts.Host, "host", "127.0.0.1", "address published ports are reached on")
	c.Flags().DurationVar(&opts.Timeout, "timeout", a.cfg.SmokeTimeout, "retry budget per check")
	return c
}

func (a *app) runSmoke(ctx context.Context, out io.Writer, st *stack.Stack, opts smoke.Options) error {
	results, err := smoke.Run(ctx, st, opts, logger.Component(a.log, "smoke"))
	if err != nil {
		return err
	}
	for _, r := range results {
		status := "ok"
		if !r.OK() {
			status = "FAIL"
		}
		printf(out, "%-4s %-10s %-6s %s (%d attempts, %s)\n", status, r.Service, r.Kind, r.Target, r.Attempts, r.Duration.Round(time.Millisecond))
	}
	return smoke.Failed(results)
}

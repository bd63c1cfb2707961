package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Camiloez/postboard/internal/runtime"
)

func downCmd(a *app) *cobra.Command {
	var opts runtime.DownOptions

	c := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the stack's containers and network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.loadStack()
			if err != nil {
				return err
			}
			rt, cleanup, err := a.newRuntime(cmd.Context(), a, false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := rt.Down(cmd.Context(), st, opts); err != nil {
				return fmt.Errorf("down %s: %w", st.Name, err)
			}
			a.log.Info("stack removed", "stack", st.Name, "volumes_removed", opts.RemoveVolumes)
			return nil
		},
	}

	c.Flags().BoolVarP(&opts.RemoveVolumes, "volumes", "v", false, "also remove named volumes and their data")
	return c
}

func restartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <service>",
		Short: "Restart one service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.loadStack()
			if err != nil {
				return err
			}
			if _, err := st.Service(args[0]); err != nil {
				return err
			}
			rt, cleanup, err := a.newRuntime(cmd.Context(), a, false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := rt.Restart(cmd.Context(), st, args[0]); err != nil {
				return fmt.Errorf("restart %s: %w", args[0], err)
			}
			printf(cmd.OutOrStdout(), "restarted %s\n", args[0])
			return nil
		},
	}
}

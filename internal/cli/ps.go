package cli

import (
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Camiloez/postboard/internal/runtime"
)

func psCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "Show the state of every service",
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

			statuses, err := rt.Status(cmd.Context(), st)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if isTerminal(out) {
				writeTable(out, statuses)
			} else {
				writePlain(out, statuses)
			}
			return nil
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeTable(w io.Writer, statuses []runtime.ServiceStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "SERVICE\tSTATE\tNAME\tIMAGE\tPORTS\tDETAIL\n")
	for _, s := range statuses {
		printf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Service, s.State, dash(s.Name), dash(s.Image), dash(strings.Join(s.Ports, ", ")), dash(s.Detail))
	}
	_ = tw.Flush()
}

// writePlain emits one tab separated line per service for scripts.
func writePlain(w io.Writer, statuses []runtime.ServiceStatus) {
	for _, s := range statuses {
		printf(w, "%s\t%s\t%s\t%s\n", s.Service, s.State, s.Name, strings.Join(s.Ports, ","))
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

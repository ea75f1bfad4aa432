package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Status string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitoring chains",
		Example: `  cadence list
  cadence list --status running --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (running|terminated|failed)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	chains, err := NewClient(opts.Server).ListChains(cmd.Context(), opts.Status)
	if err != nil {
		return clientError(f, "failed to list chains", err)
	}

	if f.JSON() {
		return f.Success(chains)
	}
	if len(chains) == 0 {
		fmt.Fprintln(f.Writer, "No chains.")
		return nil
	}
	return f.Table(chainHeader, chainRows(chains))
}

var chainHeader = []string{"ID", "Target", "Status", "Generation", "Updated"}

func chainRows(chains []store.Chain) [][]string {
	rows := make([][]string, 0, len(chains))
	for _, c := range chains {
		status := string(c.Status)
		if c.Reason != "" {
			status += " (" + c.Reason + ")"
		}
		rows = append(rows, []string{
			c.ID,
			c.Target,
			status,
			strconv.FormatInt(c.Generation, 10),
			c.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

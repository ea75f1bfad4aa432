package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/store"
)

// NewTerminateCommand creates the terminate command.
func NewTerminateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terminate <chain-id>...",
		Short: "Terminate monitoring chains",
		Long: `Terminate one or more chains. A terminated chain runs no further
generations; its history stays in the database.

Every id is attempted. The command fails if any id could not be terminated.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runTerminate(opts *RootOptions, ids []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	client := NewClient(opts.Server)

	var (
		chains  []store.Chain
		lastErr error
	)
	for _, id := range ids {
		chain, err := client.TerminateChain(cmd.Context(), id)
		if err != nil {
			lastErr = clientError(f, fmt.Sprintf("failed to terminate %s", id), err)
			continue
		}
		chains = append(chains, chain)
		if !f.JSON() {
			fmt.Fprintf(f.Writer, "%s %s\n", chain.ID, chain.Status)
		}
	}

	if f.JSON() && len(chains) > 0 {
		if err := f.Success(chains); err != nil {
			return err
		}
	}
	return lastErr
}

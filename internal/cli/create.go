package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/api"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Count int
	At    string // RFC 3339 first scheduled time
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <target>",
		Short: "Start monitoring chains for a target",
		Long: `Start one or more monitoring chains for a target on a running server.

A target is an http(s) URL or a tcp host:port. A bare host:port is
probed over TCP.

Example:
  cadence create https://example.com/healthz
  cadence create db.internal:5432 --count 3
  cadence create tcp://cache:6379 --at 2026-01-01T00:00:00Z`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of chains to start")
	cmd.Flags().StringVar(&opts.At, "at", "", "first scheduled time (RFC 3339, default now)")

	return cmd
}

func runCreate(opts *CreateOptions, target string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	req := api.CreateRequest{Target: target, Count: opts.Count}
	if opts.At != "" {
		at, err := time.Parse(time.RFC3339, opts.At)
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --at %q: expected RFC 3339", opts.At))
		}
		req.ScheduledAt = &at
	}

	f.VerboseLog("POST %s/v1/chains target=%s count=%d", opts.Server, target, opts.Count)
	resp, err := NewClient(opts.Server).CreateChains(cmd.Context(), req)
	if err != nil {
		return clientError(f, "failed to create chains", err)
	}

	if f.JSON() {
		return f.Success(resp)
	}
	for _, id := range resp.ChainIDs {
		fmt.Fprintln(f.Writer, id)
	}
	return nil
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stats",
		Short:         "Show aggregate drift and health counters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}

	return cmd
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	stats, err := NewClient(opts.Server).Stats(cmd.Context())
	if err != nil {
		return clientError(f, "failed to fetch stats", err)
	}

	if f.JSON() {
		return f.Success(stats)
	}

	fmt.Fprintf(f.Writer, "Generations:        %d\n", stats.Generations)
	fmt.Fprintf(f.Writer, "Execution failures: %d\n", stats.ExecutionFailures)
	fmt.Fprintf(f.Writer, "Timer failures:     %d\n", stats.TimerFailures)
	fmt.Fprintf(f.Writer, "Unhealthy:          %d\n", stats.Unhealthy)
	fmt.Fprintf(f.Writer, "Execution drifts:   %d\n", stats.ExecutionDrifts)
	fmt.Fprintf(f.Writer, "Scheduling drifts:  %d\n", stats.SchedulingDrifts)

	names := stats.TargetNames()
	if len(names) == 0 {
		return nil
	}
	fmt.Fprintln(f.Writer)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		t := stats.Targets[name]
		rows = append(rows, []string{
			name,
			strconv.FormatInt(t.Generations, 10),
			strconv.FormatInt(t.Failures, 10),
			strconv.FormatInt(t.Unhealthy, 10),
			strconv.FormatBool(t.LastHealthy),
		})
	}
	return f.Table([]string{"Target", "Generations", "Failures", "Unhealthy", "Healthy"}, rows)
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database   string
	Generation int64 // -1 = all retained generations
}

// HistoryEntry is one recorded event as printed by the history command.
type HistoryEntry struct {
	Generation int64           `json:"generation"`
	Seq        int64           `json:"seq"`
	Kind       string          `json:"kind"`
	At         time.Time       `json:"at"`
	Payload    json.RawMessage `json:"payload"`
}

// HistoryResult is the JSON output of the history command.
type HistoryResult struct {
	Chain  store.Chain    `json:"chain"`
	Events []HistoryEntry `json:"events"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <chain-id>",
		Short: "Show the recorded history of a chain",
		Long: `Show the events recorded for a chain, read directly from the database.
Only retained generations are shown.

Example:
  cadence history 0193a1b2-... --db ./cadence.db
  cadence history 0193a1b2-... --db ./cadence.db --generation 4 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().Int64Var(&opts.Generation, "generation", -1, "show only this generation")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, chainID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(opts.Database); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	chain, err := st.GetChain(ctx, chainID)
	if errors.Is(err, store.ErrNotFound) {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("chain not found: %s", chainID), nil)
		return WrapExitError(ExitFailure, "chain not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read chain", err)
	}

	var events []store.Event
	if opts.Generation >= 0 {
		events, err = st.ReadHistory(ctx, chainID, opts.Generation)
	} else {
		events, err = st.ReadChainHistory(ctx, chainID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	entries := make([]HistoryEntry, 0, len(events))
	for _, e := range events {
		payload := json.RawMessage(e.Payload)
		if len(payload) == 0 {
			payload = json.RawMessage("{}")
		}
		entries = append(entries, HistoryEntry{
			Generation: e.Generation,
			Seq:        e.Seq,
			Kind:       e.Kind,
			At:         e.At.UTC(),
			Payload:    payload,
		})
	}

	if f.JSON() {
		return f.Success(HistoryResult{Chain: chain, Events: entries})
	}

	fmt.Fprintf(f.Writer, "Chain %s (%s) target=%s generation=%d\n", chain.ID, chain.Status, chain.Target, chain.Generation)
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No recorded events.")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.Generation, 10),
			strconv.FormatInt(e.Seq, 10),
			e.Kind,
			e.At.Format(time.RFC3339Nano),
			string(e.Payload),
		})
	}
	return f.Table([]string{"Gen", "Seq", "Kind", "At", "Payload"}, rows)
}

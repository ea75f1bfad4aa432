package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/config"
)

// ValidationIssue is one problem found in a config file.
type ValidationIssue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors,omitempty"`
	Config *ConfigSummary    `json:"config,omitempty"`
}

// ConfigSummary is the resolved configuration of a valid file.
type ConfigSummary struct {
	Database     string `json:"database"`
	Listen       string `json:"listen"`
	LogLevel     string `json:"log_level"`
	Period       string `json:"period"`
	Tolerance    string `json:"tolerance"`
	Continuation string `json:"continuation"`
	ProbeTimeout string `json:"probe_timeout"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a config file",
		Long: `Validate a CUE config file against the cadence schema without
starting the server. Defaults are applied, so the resolved configuration
is printed for a valid file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		_ = f.Error(ErrCodeGeneric, fmt.Sprintf("config file not found: %s", path), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("config file not found: %s", path))
	}

	f.VerboseLog("Validating %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		issues := validationIssues(err)
		if f.JSON() {
			if encErr := f.Success(ValidationResult{Valid: false, Errors: issues}); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintf(f.Writer, "✗ %s: %d error(s)\n", path, len(issues))
			for _, issue := range issues {
				if issue.Line > 0 {
					fmt.Fprintf(f.Writer, "  [%s] line %d: %s\n", ErrCodeInvalidConfig, issue.Line, issue.Message)
				} else {
					fmt.Fprintf(f.Writer, "  [%s] %s\n", ErrCodeInvalidConfig, issue.Message)
				}
			}
		}
		return WrapExitError(ExitFailure, "invalid config", err)
	}

	summary := &ConfigSummary{
		Database:     cfg.Database,
		Listen:       cfg.Listen,
		LogLevel:     cfg.Log.Level.String(),
		Period:       cfg.Policy.Period.String(),
		Tolerance:    cfg.Policy.Tolerance.String(),
		Continuation: string(cfg.Policy.Continuation),
		ProbeTimeout: cfg.Probe.Timeout.String(),
	}
	if f.JSON() {
		return f.Success(ValidationResult{Valid: true, Config: summary})
	}

	fmt.Fprintf(f.Writer, "✓ %s is valid\n", path)
	f.VerboseLog("period=%s tolerance=%s continuation=%s", summary.Period, summary.Tolerance, summary.Continuation)
	return nil
}

// validationIssues flattens a config error, including joined errors.
func validationIssues(err error) []ValidationIssue {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var issues []ValidationIssue
		for _, e := range joined.Unwrap() {
			issues = append(issues, validationIssues(e)...)
		}
		return issues
	}

	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		issue := ValidationIssue{Field: cfgErr.Field, Message: cfgErr.Error()}
		if cfgErr.Pos.IsValid() {
			issue.Line = cfgErr.Pos.Line()
			issue.Column = cfgErr.Pos.Column()
		}
		return []ValidationIssue{issue}
	}
	return []ValidationIssue{{Message: err.Error()}}
}

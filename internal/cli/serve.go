package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/api"
	"github.com/roach88/cadence/internal/config"
	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/metrics"
	"github.com/roach88/cadence/internal/monitor"
	"github.com/roach88/cadence/internal/probe"
	"github.com/roach88/cadence/internal/store"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take once
// the server is stopping.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
	Database   string
	Listen     string
	LogFile    string

	// Ready is called with the bound address once the API is listening
	// (for testing).
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring host and its HTTP API",
		Long: `Run the monitoring host. Chains recorded in the database are recovered
and resume from their last committed generation; new chains are created
through the HTTP API.

Flags override the matching config file fields.

Example:
  cadence serve --config ./cadence.cue
  cadence serve --db /var/lib/cadence/cadence.db --listen :8089`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to CUE config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "API listen address (overrides config)")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "append logs to this file (overrides config)")

	return cmd
}

func (opts *ServeOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.LogFile != "" {
		cfg.Log.File = opts.LogFile
	}
	if opts.Verbose {
		cfg.Log.Level = slog.LevelDebug
	}
	return cfg, nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitFailure, "invalid config", err)
	}

	closeLog, err := setupLogging(cmd.ErrOrStderr(), opts.Format, cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	defer func() { _ = closeLog() }()

	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	agg := metrics.NewAggregate()
	driver, err := monitor.NewDriver(cfg.Policy, monitor.WithCounterSink(agg))
	if err != nil {
		return WrapExitError(ExitFailure, "invalid policy", err)
	}
	prober := probe.New(
		probe.WithTimeout(cfg.Probe.Timeout),
		probe.WithLimiter(probe.NewLimiter(cfg.Probe.Rate, cfg.Probe.Burst)),
	)
	host := engine.New(st, driver, prober,
		engine.WithMaxConcurrent(cfg.Engine.MaxConcurrent),
		engine.WithHistoryRetention(cfg.Engine.HistoryRetention),
		engine.WithProbeTimeout(cfg.Probe.Timeout),
	)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	recovered, err := host.Recover(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to recover chains", err)
	}

	apiServer, err := api.NewServer(host,
		api.WithStats(agg),
		api.WithMetricsHandler(agg.Handler()),
		api.WithHealthCheck(st.Ping),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build API server", err)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	httpServer := &http.Server{
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	hostErr := make(chan error, 1)
	go func() {
		hostErr <- host.Run(ctx)
	}()

	addr := ln.Addr().String()
	slog.Info("cadence serving", "addr", addr, "db", cfg.Database, "recovered", recovered,
		"period", cfg.Policy.Period, "tolerance", cfg.Policy.Tolerance)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", addr)
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = WrapExitError(ExitFailure, "http server error", err)
		}
		cancel()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}

	host.Stop()
	if err := <-hostErr; err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
		runErr = WrapExitError(ExitFailure, "host error", err)
	}

	slog.Info("cadence stopped")
	return runErr
}

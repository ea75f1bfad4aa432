package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// setupLogging installs the default slog logger. Text or JSON follows the
// output format. When file is set, logs are appended to it instead of w.
// The returned func closes the log file.
func setupLogging(w io.Writer, format string, level slog.Level, file string) (func() error, error) {
	closeFn := func() error { return nil }
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}

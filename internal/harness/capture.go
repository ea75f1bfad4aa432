package harness

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/cadence/internal/monitor"
)

// alertCapture is a slog.Handler that keeps the category of every
// "drift alert" line.
type alertCapture struct {
	mu         sync.Mutex
	categories []string
}

func (h *alertCapture) Enabled(context.Context, slog.Level) bool { return true }

func (h *alertCapture) Handle(_ context.Context, r slog.Record) error {
	if r.Level != slog.LevelWarn || r.Message != "drift alert" {
		return nil
	}
	category := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "category" {
			category = a.Value.String()
			return false
		}
		return true
	})
	h.mu.Lock()
	h.categories = append(h.categories, category)
	h.mu.Unlock()
	return nil
}

func (h *alertCapture) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *alertCapture) WithGroup(string) slog.Handler      { return h }

func (h *alertCapture) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.categories)
}

// since returns the categories logged after the first n.
func (h *alertCapture) since(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.categories[n:]...)
}

// reportSink counts the reports a chain hands to its CounterSink.
type reportSink struct {
	mu      sync.Mutex
	reports []monitor.Report
}

func (s *reportSink) Record(r monitor.Report) {
	s.mu.Lock()
	s.reports = append(s.reports, r)
	s.mu.Unlock()
}

func (s *reportSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/monitor"
	"github.com/roach88/cadence/internal/store"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu      sync.Mutex
	reports []monitor.Report
}

func (s *recordingSink) Record(r monitor.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

func (s *recordingSink) snapshot() []monitor.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]monitor.Report(nil), s.reports...)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cadence.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestDriver(t *testing.T, sink monitor.CounterSink) *monitor.Driver {
	t.Helper()
	d, err := monitor.NewDriver(monitor.DefaultPolicy(), monitor.WithCounterSink(sink))
	require.NoError(t, err)
	return d
}

func newTestHost(t *testing.T, s *store.Store, handler Handler, prober Prober, clock WallClock, opts ...HostOption) *Host {
	t.Helper()
	base := []HostOption{
		WithClock(clock),
		WithIDGenerator(NewFixedGenerator("chain-1", "chain-2", "chain-3")),
	}
	return New(s, handler, prober, append(base, opts...)...)
}

// runHost starts h.Run in the background. The returned func cancels it and
// waits for Run to return.
func runHost(t *testing.T, h *Host) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("host did not stop")
			}
		})
	}
	t.Cleanup(stop)
	return stop
}

func historyKinds(t *testing.T, s *store.Store, chainID string, gen int64) []string {
	t.Helper()
	events, err := s.ReadHistory(context.Background(), chainID, gen)
	require.NoError(t, err)
	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func chainGeneration(t *testing.T, s *store.Store, chainID string) int64 {
	t.Helper()
	c, err := s.GetChain(context.Background(), chainID)
	require.NoError(t, err)
	return c.Generation
}

// seedEvent writes a history event directly, as a crashed host would have.
func seedEvent(t *testing.T, s *store.Store, chainID string, gen, seq int64, kind string, payload ir.Object, at time.Time) {
	t.Helper()
	data, err := ir.MarshalCanonical(payload)
	require.NoError(t, err)
	_, err = s.AppendEvent(context.Background(), store.Event{
		ID:         ir.MustEventID(chainID, gen, seq, kind),
		ChainID:    chainID,
		Generation: gen,
		Seq:        seq,
		Kind:       kind,
		Payload:    data,
		At:         at,
	})
	require.NoError(t, err)
}

type handlerFunc func(ctx monitor.ExecutionContext, in monitor.GenerationInput) (monitor.Outcome, error)

func (f handlerFunc) Run(ctx monitor.ExecutionContext, in monitor.GenerationInput) (monitor.Outcome, error) {
	return f(ctx, in)
}

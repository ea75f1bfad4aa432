package cli

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/api"
	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/metrics"
	"github.com/roach88/cadence/internal/monitor"
	"github.com/roach88/cadence/internal/store"
	"github.com/roach88/cadence/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	DBPath string
	Store  *store.Store
}

// newTestServer serves the API over a real host that is never run, so
// created chains stay at generation 0.
func newTestServer(t *testing.T) testServer {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cadence.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	agg := metrics.NewAggregate()
	driver, err := monitor.NewDriver(monitor.DefaultPolicy(), monitor.WithCounterSink(agg))
	require.NoError(t, err)

	host := engine.New(st, driver, testutil.NewScriptedProber(nil),
		engine.WithClock(testutil.NewManualClock(t0)),
		engine.WithIDGenerator(engine.NewFixedGenerator("chain-1", "chain-2", "chain-3")),
	)
	handler, err := api.NewServer(host,
		api.WithStats(agg),
		api.WithMetricsHandler(agg.Handler()),
		api.WithHealthCheck(st.Ping),
	)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return testServer{URL: srv.URL, DBPath: dbPath, Store: st}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/monitor"
)

func TestLoadScenario_Testdata(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/drift_and_faults.yaml")
	require.NoError(t, err)

	assert.Equal(t, "drift_and_faults", s.Name)
	assert.Equal(t, "db.internal:5432", s.Target)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), s.Start.UTC())
	require.Len(t, s.Generations, 5)
	assert.Equal(t, 70*time.Second, s.Generations[0].ProbeLatency)
	assert.Equal(t, 5*time.Second, s.Generations[1].TimerDelay)
	assert.Equal(t, 1, s.Generations[1].Replays)
	assert.Equal(t, "connection reset by peer", s.Generations[2].ProbeFault)
	assert.True(t, s.Generations[4].ProbeUnhealthy)

	require.NotNil(t, s.Expect)
	require.NotNil(t, s.Expect.Counters)
	assert.Equal(t, monitor.Counters{Total: 5, ExecutionFailures: 2, TimerFailures: 2, Unhealthy: 2}, s.Expect.Counters.Counters())
}

func TestScenario_MonitorPolicy(t *testing.T) {
	tolerance := time.Duration(0)
	s := &Scenario{Policy: PolicySpec{
		Period:       5 * time.Minute,
		Tolerance:    &tolerance,
		Continuation: "intended",
		Alerts:       &AlertSpec{Unhealthy: true},
	}}

	p, err := s.MonitorPolicy()
	require.NoError(t, err)
	assert.Equal(t, monitor.Policy{
		Period:       5 * time.Minute,
		Tolerance:    0,
		Continuation: monitor.ContinueFromIntended,
		Alerts:       monitor.AlertPolicy{Unhealthy: true},
	}, p)

	p, err = (&Scenario{}).MonitorPolicy()
	require.NoError(t, err)
	assert.Equal(t, monitor.DefaultPolicy(), p)
}

func TestParseScenario_Invalid(t *testing.T) {
	base := "name: x\ndescription: y\nstart: 2026-03-01T12:00:00Z\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: y\nstart: 2026-03-01T12:00:00Z\ngenerations: [{}]\n", "name is required"},
		{"missing description", "name: x\nstart: 2026-03-01T12:00:00Z\ngenerations: [{}]\n", "description is required"},
		{"missing start", "name: x\ndescription: y\ngenerations: [{}]\n", "start is required"},
		{"no generations", base, "generations list is required"},
		{"unknown field", base + "generations: [{probe_latnecy: 1s}]\n", "probe_latnecy"},
		{"negative latency", base + "generations: [{probe_latency: -1s}]\n", "probe_latency must not be negative"},
		{"fault and panic", base + "generations: [{probe_fault: a, probe_panic: b}]\n", "exclusive"},
		{"bad level", base + "generations: [{expect: {level: catastrophic}}]\n", "unknown level"},
		{"bad continuation", base + "policy: {continuation: sometimes}\ngenerations: [{}]\n", "unknown continuation policy"},
		{"bad period", base + "policy: {period: -1s}\ngenerations: [{}]\n", "period must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

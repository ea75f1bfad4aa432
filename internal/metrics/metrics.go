// Package metrics aggregates per-generation reports across all chains and
// exports them as Prometheus metrics.
package metrics

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/cadence/internal/drift"
	"github.com/roach88/cadence/internal/monitor"
)

const namespace = "cadence"

// Stats is a point-in-time copy of the aggregate counters.
type Stats struct {
	Generations       int64                  `json:"generations"`
	ExecutionFailures int64                  `json:"execution_failures"`
	TimerFailures     int64                  `json:"timer_failures"`
	Unhealthy         int64                  `json:"unhealthy"`
	ExecutionDrifts   int64                  `json:"execution_drifts"`
	SchedulingDrifts  int64                  `json:"scheduling_drifts"`
	Targets           map[string]TargetStats `json:"targets"`
}

// TargetStats are the counters for one target.
type TargetStats struct {
	Generations int64 `json:"generations"`
	Failures    int64 `json:"failures"`
	Unhealthy   int64 `json:"unhealthy"`
	LastHealthy bool  `json:"last_healthy"`
}

// Aggregate implements monitor.CounterSink. It is safe for concurrent use.
type Aggregate struct {
	generations       atomic.Int64
	executionFailures atomic.Int64
	timerFailures     atomic.Int64
	unhealthy         atomic.Int64
	executionDrifts   atomic.Int64
	schedulingDrifts  atomic.Int64

	mu      sync.Mutex
	targets map[string]*TargetStats

	registry       *prometheus.Registry
	generationsVec *prometheus.CounterVec
	failuresVec    *prometheus.CounterVec
	driftHist      *prometheus.HistogramVec
	upGauge        *prometheus.GaugeVec
}

var _ monitor.CounterSink = (*Aggregate)(nil)

// NewAggregate creates an Aggregate with its own Prometheus registry.
func NewAggregate() *Aggregate {
	a := &Aggregate{
		targets:  make(map[string]*TargetStats),
		registry: prometheus.NewRegistry(),

		generationsVec: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of completed monitoring generations",
			},
			[]string{"target"},
		),
		failuresVec: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Total number of generation failures by category",
			},
			[]string{"target", "category"},
		),
		driftHist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "drift_seconds",
				Help:      "Observed drift per generation in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 3, 10, 30, 60, 300},
			},
			[]string{"kind"},
		),
		upGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "target_up",
				Help:      "Result of the most recent probe (1=healthy, 0=not healthy)",
			},
			[]string{"target"},
		),
	}

	a.registry.MustRegister(
		a.generationsVec,
		a.failuresVec,
		a.driftHist,
		a.upGauge,
	)
	return a
}

// Record implements monitor.CounterSink.
func (a *Aggregate) Record(r monitor.Report) {
	a.generations.Add(r.Delta.Total)
	a.executionFailures.Add(r.Delta.ExecutionFailures)
	a.timerFailures.Add(r.Delta.TimerFailures)
	a.unhealthy.Add(r.Delta.Unhealthy)
	switch r.Decision.Level {
	case drift.LevelExecutionDrift:
		a.executionDrifts.Add(1)
	case drift.LevelSchedulingDrift:
		a.schedulingDrifts.Add(1)
	}

	a.mu.Lock()
	ts, ok := a.targets[r.Target]
	if !ok {
		ts = &TargetStats{}
		a.targets[r.Target] = ts
	}
	ts.Generations += r.Delta.Total
	ts.Failures += int64(len(r.Failures))
	ts.Unhealthy += r.Delta.Unhealthy
	ts.LastHealthy = r.ProbeSuccess
	a.mu.Unlock()

	a.generationsVec.WithLabelValues(r.Target).Add(float64(r.Delta.Total))
	for _, f := range r.Failures {
		a.failuresVec.WithLabelValues(r.Target, string(f)).Inc()
	}
	if r.Decision.ExecutionDrift > 0 {
		a.driftHist.WithLabelValues("execution").Observe(r.Decision.ExecutionDrift.Seconds())
	}
	if r.Decision.SchedulingDrift > 0 {
		a.driftHist.WithLabelValues("scheduling").Observe(r.Decision.SchedulingDrift.Seconds())
	}
	up := 0.0
	if r.ProbeSuccess {
		up = 1
	}
	a.upGauge.WithLabelValues(r.Target).Set(up)
}

// Snapshot returns a copy of the current counters.
func (a *Aggregate) Snapshot() Stats {
	s := Stats{
		Generations:       a.generations.Load(),
		ExecutionFailures: a.executionFailures.Load(),
		TimerFailures:     a.timerFailures.Load(),
		Unhealthy:         a.unhealthy.Load(),
		ExecutionDrifts:   a.executionDrifts.Load(),
		SchedulingDrifts:  a.schedulingDrifts.Load(),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	s.Targets = make(map[string]TargetStats, len(a.targets))
	for k, v := range a.targets {
		s.Targets[k] = *v
	}
	return s
}

// TargetNames returns the targets seen so far in sorted order.
func (s Stats) TargetNames() []string {
	names := make([]string, 0, len(s.Targets))
	for k := range s.Targets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Registry returns the Prometheus registry backing the aggregate.
func (a *Aggregate) Registry() *prometheus.Registry {
	return a.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (a *Aggregate) Handler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

package monitor

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeContext is a live, in-memory execution context. Time only moves when
// the probe or the timer is awaited.
type fakeContext struct {
	now time.Time

	probeLatency time.Duration
	probeFails   bool // target reports down
	probeErr     error
	probePanic   any

	timerDelay time.Duration
	timerErr   error
	timerPanic any

	continueErr error

	probeCalls int
	timerCalls int
	timerAsked []time.Time
	continued  []GenerationInput
}

func newFakeContext(now time.Time) *fakeContext {
	return &fakeContext{now: now}
}

func (c *fakeContext) InvokeProbe(target string) (ProbeResult, error) {
	c.probeCalls++
	if c.probePanic != nil {
		panic(c.probePanic)
	}
	c.now = c.now.Add(c.probeLatency)
	if c.probeErr != nil {
		return ProbeResult{}, c.probeErr
	}
	return ProbeResult{ExecutionTimestamp: c.now, Success: !c.probeFails}, nil
}

func (c *fakeContext) CurrentLogicalTime() time.Time { return c.now }

func (c *fakeContext) IsReplaying() bool { return false }

func (c *fakeContext) AwaitTimer(fireAt time.Time) (time.Time, error) {
	c.timerCalls++
	c.timerAsked = append(c.timerAsked, fireAt)
	if c.timerPanic != nil {
		panic(c.timerPanic)
	}
	if c.timerErr != nil {
		return time.Time{}, c.timerErr
	}
	fired := fireAt.Add(c.timerDelay)
	if fired.Before(c.now) {
		fired = c.now
	}
	c.now = fired
	return fired, nil
}

func (c *fakeContext) ContinueAsNew(next GenerationInput) error {
	if c.continueErr != nil {
		return c.continueErr
	}
	c.continued = append(c.continued, next)
	return nil
}

// replayContext feeds back recorded probe and timer results. It reports
// replaying while the cursor is behind the recorded history. extra keeps it
// replaying past the timer, as if later events had been recorded too.
type replayContext struct {
	probe   ProbeResult
	probeAt time.Time
	fired   time.Time
	extra   int

	cursor    int
	now       time.Time
	continued []GenerationInput
}

func (c *replayContext) historyLen() int { return 2 + c.extra }

func (c *replayContext) InvokeProbe(string) (ProbeResult, error) {
	c.cursor++
	c.now = c.probeAt
	return c.probe, nil
}

func (c *replayContext) CurrentLogicalTime() time.Time { return c.now }

func (c *replayContext) IsReplaying() bool { return c.cursor < c.historyLen() }

func (c *replayContext) AwaitTimer(time.Time) (time.Time, error) {
	c.cursor++
	c.now = c.fired
	return c.fired, nil
}

func (c *replayContext) ContinueAsNew(next GenerationInput) error {
	c.continued = append(c.continued, next)
	return nil
}

// recordingContext adds durable effect markers to replayContext.
type recordingContext struct {
	*replayContext
	markers map[string]bool
	err     error
}

func (c *recordingContext) RecordEffect(name string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if c.markers[name] {
		return false, nil
	}
	if c.IsReplaying() {
		return false, nil
	}
	c.markers[name] = true
	return true, nil
}

func (c *recordingContext) ChainID() string { return "chain-1" }

type recordingSink struct {
	mu      sync.Mutex
	reports []Report
}

func (s *recordingSink) Record(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

// logBuffer captures driver log output at debug level.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) count(msg string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), `msg="`+msg+`"`)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

var errBoom = errors.New("boom")

func testInput() GenerationInput {
	return GenerationInput{Target: "db.internal:5432", ScheduledTime: t0}
}

// panicSink panics on every report.
type panicSink struct{}

func (panicSink) Record(Report) { panic("sink exploded") }

package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flipContext replays for the first n IsReplaying calls.
type flipContext struct {
	fakeContext
	replayingFor int
	calls        int
}

func (c *flipContext) IsReplaying() bool {
	c.calls++
	return c.calls <= c.replayingFor
}

func TestGuard_RechecksFlagOnEveryCall(t *testing.T) {
	ctx := &flipContext{fakeContext: fakeContext{now: t0}, replayingFor: 1}
	g := NewGuard(ctx, nil)

	var ran []string
	assert.False(t, g.Do("first", func() { ran = append(ran, "first") }))
	assert.True(t, g.Do("second", func() { ran = append(ran, "second") }))
	assert.True(t, g.Do("third", func() { ran = append(ran, "third") }))

	assert.Equal(t, []string{"second", "third"}, ran)
	assert.Equal(t, 3, ctx.calls)
}

func TestGuard_LiveContextRunsEffect(t *testing.T) {
	g := NewGuard(newFakeContext(t0), nil)
	ran := 0
	assert.True(t, g.Do("x", func() { ran++ }))
	assert.Equal(t, 1, ran)
}

func TestGuard_UsesEffectRecorder(t *testing.T) {
	ctx := &recordingContext{
		replayContext: &replayContext{fired: t0.Add(time.Minute)},
		markers:       map[string]bool{},
	}
	ctx.cursor = 2
	g := NewGuard(ctx, nil)

	ran := 0
	assert.True(t, g.Do("alert", func() { ran++ }))
	assert.False(t, g.Do("alert", func() { ran++ }))
	assert.True(t, g.Do("report", func() { ran++ }))
	assert.Equal(t, 2, ran)
}

func TestGuard_RecorderErrorSkips(t *testing.T) {
	ctx := &recordingContext{
		replayContext: &replayContext{},
		markers:       map[string]bool{},
		err:           errBoom,
	}
	ctx.cursor = 2
	ran := false
	assert.False(t, NewGuard(ctx, nil).Do("alert", func() { ran = true }))
	assert.False(t, ran)
}

func TestGuard_PanicInEffectIsContained(t *testing.T) {
	logger, logs := newTestLogger()
	g := NewGuard(newFakeContext(t0), logger)

	var ran bool
	require.NotPanics(t, func() {
		ran = g.Do("report", func() { panic("kaboom") })
	})
	assert.False(t, ran)
	assert.Equal(t, 1, logs.count("effect panicked"))
	assert.True(t, g.Do("alert", func() {}), "guard stays usable after a panic")
}

func TestGuard_LogsThroughInjectedLogger(t *testing.T) {
	logger, logs := newTestLogger()
	ctx := &recordingContext{
		replayContext: &replayContext{},
		markers:       map[string]bool{},
		err:           errBoom,
	}
	ctx.cursor = 2

	assert.False(t, NewGuard(ctx, logger).Do("alert", func() {}))
	assert.Equal(t, 1, logs.count("effect marker not recorded, skipping effect"))
}

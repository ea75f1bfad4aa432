package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestVirtualClock_WaitJumps(t *testing.T) {
	c := NewVirtualClock(start)

	require.NoError(t, c.WaitUntil(context.Background(), start.Add(time.Minute)))
	assert.Equal(t, start.Add(time.Minute), c.Now())

	// A past deadline does not move time backwards.
	require.NoError(t, c.WaitUntil(context.Background(), start))
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Advance(5 * time.Second)
	assert.Equal(t, start.Add(65*time.Second), c.Now())
}

func TestManualClock_WaitBlocksUntilAdvance(t *testing.T) {
	c := NewManualClock(start)
	done := make(chan error, 1)

	go func() {
		done <- c.WaitUntil(context.Background(), start.Add(time.Minute))
	}()

	require.Eventually(t, func() bool { return c.Waiters() == 1 }, time.Second, time.Millisecond)

	c.Advance(30 * time.Second)
	select {
	case <-done:
		t.Fatal("wait returned before its deadline")
	case <-time.After(10 * time.Millisecond):
	}

	c.Advance(30 * time.Second)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after deadline")
	}
	assert.Equal(t, 0, c.Waiters())
}

func TestManualClock_WaitCancelled(t *testing.T) {
	c := NewManualClock(start)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- c.WaitUntil(ctx, start.Add(time.Hour))
	}()
	require.Eventually(t, func() bool { return c.Waiters() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("wait did not observe cancellation")
	}
	assert.Equal(t, 0, c.Waiters())
}

func TestManualClock_FailNextWait(t *testing.T) {
	c := NewManualClock(start)
	boom := errors.New("timer service down")
	c.FailNextWait(boom)

	assert.ErrorIs(t, c.WaitUntil(context.Background(), start.Add(time.Hour)), boom)
	assert.NoError(t, c.WaitUntil(context.Background(), start))
}

func TestScriptedProber(t *testing.T) {
	c := NewVirtualClock(start)
	boom := errors.New("connection refused")
	p := NewScriptedProber(c,
		ProbeStep{Latency: 5 * time.Second},
		ProbeStep{Down: true},
		ProbeStep{Err: boom},
		ProbeStep{Panic: "kaboom"},
	)
	ctx := context.Background()

	ok, err := p.Probe(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, start.Add(5*time.Second), c.Now())

	ok, err = p.Probe(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Probe(ctx, "c")
	assert.ErrorIs(t, err, boom)

	assert.PanicsWithValue(t, "kaboom", func() { _, _ = p.Probe(ctx, "d") })

	ok, err = p.Probe(ctx, "e")
	require.NoError(t, err)
	assert.True(t, ok, "exhausted script defaults to healthy")

	assert.Equal(t, 5, p.Calls())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, p.Targets())
}

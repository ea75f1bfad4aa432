package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_NewClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current(), "new clock should start at 0")
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()
	c.Advance(5)
	assert.Equal(t, int64(5), c.Current())

	// Never moves backwards.
	c.Advance(3)
	assert.Equal(t, int64(5), c.Current())
	assert.Equal(t, int64(6), c.Next())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines*callsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d generated twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, goroutines*callsPerGoroutine)
}

func TestSystemClock_WaitUntil(t *testing.T) {
	var c SystemClock

	require.NoError(t, c.WaitUntil(context.Background(), c.Now().Add(-time.Second)))
	require.NoError(t, c.WaitUntil(context.Background(), c.Now().Add(5*time.Millisecond)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.WaitUntil(ctx, c.Now().Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

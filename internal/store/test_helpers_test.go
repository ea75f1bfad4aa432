package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/monitor"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testInput(gen int64) monitor.GenerationInput {
	return monitor.GenerationInput{
		Target:        "db.internal:5432",
		ScheduledTime: testNow.Add(time.Duration(gen) * time.Minute),
		Generation:    gen,
		Counters:      monitor.Counters{Total: gen},
	}
}

// createTestChain creates chain id with generation 0 pending.
func createTestChain(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.CreateChain(context.Background(), id, testInput(0), testNow); err != nil {
		t.Fatalf("CreateChain() failed: %v", err)
	}
}

func testEvent(chainID string, gen, seq int64, kind string) Event {
	return Event{
		ID:         ir.MustEventID(chainID, gen, seq, kind),
		ChainID:    chainID,
		Generation: gen,
		Seq:        seq,
		Kind:       kind,
		Payload:    []byte(`{}`),
		At:         testNow.Add(time.Duration(seq) * time.Second),
	}
}

package store

import (
	"time"

	"github.com/roach88/cadence/internal/monitor"
)

// ChainStatus is the lifecycle state of a chain.
type ChainStatus string

const (
	ChainRunning    ChainStatus = "running"
	ChainTerminated ChainStatus = "terminated"
	ChainFailed     ChainStatus = "failed"
)

// GenerationStatus is the lifecycle state of one generation.
type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationContinued GenerationStatus = "continued"
	GenerationFailed    GenerationStatus = "failed"
)

// Chain is a monitoring chain. Generation is the head: the newest
// generation that has been written.
type Chain struct {
	ID         string      `json:"id"`
	Target     string      `json:"target"`
	Status     ChainStatus `json:"status"`
	Generation int64       `json:"generation"`
	Reason     string      `json:"reason,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Generation is a persisted generation input.
type Generation struct {
	ChainID   string
	Input     monitor.GenerationInput
	Digest    string
	Status    GenerationStatus
	CreatedAt time.Time
}

// Event is one entry of a generation's history. Payload is canonical JSON.
type Event struct {
	ID         string
	ChainID    string
	Generation int64
	Seq        int64
	Kind       string
	Payload    []byte
	At         time.Time
}

// Continuation reports what CommitContinuation did.
type Continuation struct {
	// Scheduled is true when the successor generation was written. It is
	// false when the chain is no longer running.
	Scheduled bool
	// Duplicate is true when the generation had already been continued with
	// the same successor.
	Duplicate bool
}

package engine

import (
	"errors"
	"fmt"
)

// ErrChainNotFound is returned for operations on an unknown chain.
var ErrChainNotFound = errors.New("chain not found")

// RuntimeError is a host-side fault detected while running a generation.
//
// Runtime errors include:
//   - Non-determinism: a replayed generation asked for a different step
//     than the one recorded
//   - Missing continuation: the handler returned without continuing
//   - Duplicate continuation: the handler continued twice
//   - Store failure: history could not be written
//
// A RuntimeError ends the chain: the generation and chain are marked failed.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ChainID identifies the affected chain.
	ChainID string

	// Generation is the generation number being executed.
	Generation int64

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNonDeterminism indicates recorded history does not match the
	// steps requested on replay.
	ErrCodeNonDeterminism RuntimeErrorCode = "NON_DETERMINISM"

	// ErrCodeMissingContinuation indicates the handler did not continue.
	ErrCodeMissingContinuation RuntimeErrorCode = "MISSING_CONTINUATION"

	// ErrCodeDuplicateContinuation indicates ContinueAsNew was called twice.
	ErrCodeDuplicateContinuation RuntimeErrorCode = "DUPLICATE_CONTINUATION"

	// ErrCodeStoreFailure indicates history could not be persisted.
	ErrCodeStoreFailure RuntimeErrorCode = "STORE_FAILURE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.ChainID != "" {
		return fmt.Sprintf("%s: %s (chain=%s, generation=%d)", e.Code, e.Message, e.ChainID, e.Generation)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNonDeterminism returns true if the error is a non-determinism error.
// Uses errors.As to handle wrapped errors.
func IsNonDeterminism(err error) bool {
	return hasCode(err, ErrCodeNonDeterminism)
}

// IsMissingContinuation returns true if the handler did not continue.
func IsMissingContinuation(err error) bool {
	return hasCode(err, ErrCodeMissingContinuation)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// newNonDeterminismError reports a replay mismatch at seq.
func newNonDeterminismError(chainID string, generation, seq int64, want, got string) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeNonDeterminism,
		Message:    fmt.Sprintf("history has %q at seq %d, replay asked for %s", got, seq, want),
		ChainID:    chainID,
		Generation: generation,
		Details: map[string]string{
			"seq":      fmt.Sprint(seq),
			"recorded": got,
			"wanted":   want,
		},
	}
}

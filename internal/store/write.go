package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/monitor"
)

// ErrAlreadyContinued is returned by CommitContinuation when the generation
// was continued before with a different successor.
var ErrAlreadyContinued = errors.New("generation already continued with a different successor")

// ErrNotPending is returned when a generation is not in the pending state.
var ErrNotPending = errors.New("generation is not pending")

// CreateChain inserts a chain and its first generation in one transaction.
func (s *Store) CreateChain(ctx context.Context, id string, first monitor.GenerationInput, at time.Time) error {
	input, digest, err := marshalInput(first)
	if err != nil {
		return fmt.Errorf("create chain: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create chain: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chains (id, target, status, generation, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, first.Target, string(ChainRunning), first.Generation, toNanos(at), toNanos(at))
	if err != nil {
		return fmt.Errorf("create chain: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO generations (chain_id, generation, input, digest, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, first.Generation, input, digest, string(GenerationPending), toNanos(at))
	if err != nil {
		return fmt.Errorf("create chain: first generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create chain: commit: %w", err)
	}
	return nil
}

// TerminateChain marks a running chain terminated. Returns false without
// error if the chain had already stopped, ErrNotFound if it does not exist.
func (s *Store) TerminateChain(ctx context.Context, id string, reason string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chains SET status = ?, reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(ChainTerminated), reason, toNanos(at), id, string(ChainRunning))
	if err != nil {
		return false, fmt.Errorf("terminate chain: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("terminate chain: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	if _, err := s.GetChain(ctx, id); err != nil {
		return false, fmt.Errorf("terminate chain %s: %w", id, err)
	}
	return false, nil
}

// AppendEvent inserts a history event.
// Uses ON CONFLICT DO NOTHING: if the slot is already taken, inserted is
// false and the stored event wins.
func (s *Store) AppendEvent(ctx context.Context, e Event) (inserted bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, chain_id, generation, seq, kind, payload, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, e.ID, e.ChainID, e.Generation, e.Seq, e.Kind, string(e.Payload), toNanos(e.At))
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	return n > 0, nil
}

// CommitContinuation ends generation current of a chain and, if the chain is
// still running, writes next as its successor and advances the chain head.
//
// History and finished generations more than retain generations behind the
// successor are pruned in the same transaction. retain <= 0 keeps
// everything.
//
// Committing the same successor twice is reported as a duplicate, not an
// error.
func (s *Store) CommitContinuation(
	ctx context.Context,
	chainID string,
	current int64,
	next monitor.GenerationInput,
	at time.Time,
	retain int64,
) (Continuation, error) {
	input, digest, err := marshalInput(next)
	if err != nil {
		return Continuation{}, fmt.Errorf("commit continuation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Continuation{}, fmt.Errorf("commit continuation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM generations WHERE chain_id = ? AND generation = ?
	`, chainID, current).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return Continuation{}, fmt.Errorf("commit continuation %s/%d: %w", chainID, current, ErrNotFound)
	}
	if err != nil {
		return Continuation{}, fmt.Errorf("commit continuation: %w", err)
	}

	switch GenerationStatus(status) {
	case GenerationPending:
	case GenerationContinued:
		return duplicateContinuation(ctx, tx, chainID, next.Generation, digest)
	default:
		return Continuation{}, fmt.Errorf("commit continuation %s/%d (%s): %w", chainID, current, status, ErrNotPending)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE generations SET status = ? WHERE chain_id = ? AND generation = ?
	`, string(GenerationContinued), chainID, current); err != nil {
		return Continuation{}, fmt.Errorf("commit continuation: mark continued: %w", err)
	}

	var chainStatus string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM chains WHERE id = ?`, chainID).Scan(&chainStatus); err != nil {
		return Continuation{}, fmt.Errorf("commit continuation: read chain: %w", err)
	}

	result := Continuation{}
	if ChainStatus(chainStatus) == ChainRunning {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO generations (chain_id, generation, input, digest, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, chainID, next.Generation, input, digest, string(GenerationPending), toNanos(at)); err != nil {
			return Continuation{}, fmt.Errorf("commit continuation: insert successor: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE chains SET generation = ?, updated_at = ? WHERE id = ?
		`, next.Generation, toNanos(at), chainID); err != nil {
			return Continuation{}, fmt.Errorf("commit continuation: advance chain: %w", err)
		}
		result.Scheduled = true
	}

	if retain > 0 {
		horizon := next.Generation - retain
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM history WHERE chain_id = ? AND generation < ?
		`, chainID, horizon); err != nil {
			return Continuation{}, fmt.Errorf("commit continuation: prune history: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM generations WHERE chain_id = ? AND generation < ? AND status != ?
		`, chainID, horizon, string(GenerationPending)); err != nil {
			return Continuation{}, fmt.Errorf("commit continuation: prune generations: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Continuation{}, fmt.Errorf("commit continuation: commit: %w", err)
	}
	return result, nil
}

// duplicateContinuation checks a repeated commit against the successor that
// was written the first time.
func duplicateContinuation(ctx context.Context, tx *sql.Tx, chainID string, next int64, digest string) (Continuation, error) {
	var stored string
	err := tx.QueryRowContext(ctx, `
		SELECT digest FROM generations WHERE chain_id = ? AND generation = ?
	`, chainID, next).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		// The chain was terminated before the first commit.
		return Continuation{Duplicate: true}, nil
	}
	if err != nil {
		return Continuation{}, fmt.Errorf("commit continuation: read successor: %w", err)
	}
	if stored != digest {
		return Continuation{}, fmt.Errorf("commit continuation %s/%d: %w", chainID, next, ErrAlreadyContinued)
	}
	return Continuation{Scheduled: true, Duplicate: true}, nil
}

// FailGeneration marks a pending generation and its chain failed.
func (s *Store) FailGeneration(ctx context.Context, chainID string, generation int64, reason string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fail generation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		UPDATE generations SET status = ?
		WHERE chain_id = ? AND generation = ? AND status = ?
	`, string(GenerationFailed), chainID, generation, string(GenerationPending))
	if err != nil {
		return fmt.Errorf("fail generation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("fail generation: %w", err)
	} else if n == 0 {
		return fmt.Errorf("fail generation %s/%d: %w", chainID, generation, ErrNotPending)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE chains SET status = ?, reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(ChainFailed), reason, toNanos(at), chainID, string(ChainRunning)); err != nil {
		return fmt.Errorf("fail generation: mark chain: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fail generation: commit: %w", err)
	}
	return nil
}

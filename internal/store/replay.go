package store

import (
	"context"
	"fmt"
)

// PendingGenerations returns the head generation of every running chain
// that has not been continued yet. These are the generations a host must
// (re-)execute after a restart.
//
// Results are ordered by chain creation time then chain id.
func (s *Store) PendingGenerations(ctx context.Context) ([]Generation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.chain_id, g.input, g.digest, g.status, g.created_at
		FROM generations g
		JOIN chains c ON c.id = g.chain_id AND c.generation = g.generation
		WHERE c.status = ? AND g.status = ?
		ORDER BY c.created_at ASC, c.id COLLATE BINARY ASC
	`, string(ChainRunning), string(GenerationPending))
	if err != nil {
		return nil, fmt.Errorf("query pending generations: %w", err)
	}
	defer rows.Close()

	pending := []Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending generation: %w", err)
		}
		pending = append(pending, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending generations: %w", err)
	}
	return pending, nil
}

// ReadHistory returns the recorded events of one generation in replay order:
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadHistory(ctx context.Context, chainID string, generation int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chain_id, generation, seq, kind, payload, at
		FROM history
		WHERE chain_id = ? AND generation = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, chainID, generation)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return collectEvents(rows)
}

// ReadChainHistory returns every retained event of a chain, oldest
// generation first.
func (s *Store) ReadChainHistory(ctx context.Context, chainID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chain_id, generation, seq, kind, payload, at
		FROM history
		WHERE chain_id = ?
		ORDER BY generation ASC, seq ASC, id COLLATE BINARY ASC
	`, chainID)
	if err != nil {
		return nil, fmt.Errorf("query chain history: %w", err)
	}
	return collectEvents(rows)
}

type eventRows interface {
	rowScanner
	Next() bool
	Err() error
	Close() error
}

func collectEvents(rows eventRows) ([]Event, error) {
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

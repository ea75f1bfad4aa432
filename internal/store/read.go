package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetChain returns a chain by id, or ErrNotFound.
func (s *Store) GetChain(ctx context.Context, id string) (Chain, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target, status, generation, reason, created_at, updated_at
		FROM chains WHERE id = ?
	`, id)
	c, err := scanChain(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chain{}, fmt.Errorf("chain %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Chain{}, fmt.Errorf("get chain: %w", err)
	}
	return c, nil
}

// ListChains returns chains ordered by creation time then id. An empty
// status returns every chain.
//
// Returns an empty slice (not nil) if there are no chains.
func (s *Store) ListChains(ctx context.Context, status ChainStatus) ([]Chain, error) {
	query := `
		SELECT id, target, status, generation, reason, created_at, updated_at
		FROM chains`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	defer rows.Close()

	chains := []Chain{}
	for rows.Next() {
		c, err := scanChain(rows)
		if err != nil {
			return nil, fmt.Errorf("list chains: %w", err)
		}
		chains = append(chains, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chains: %w", err)
	}
	return chains, nil
}

// ReadGeneration returns one generation, or ErrNotFound.
func (s *Store) ReadGeneration(ctx context.Context, chainID string, generation int64) (Generation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chain_id, input, digest, status, created_at
		FROM generations WHERE chain_id = ? AND generation = ?
	`, chainID, generation)
	g, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Generation{}, fmt.Errorf("generation %s/%d: %w", chainID, generation, ErrNotFound)
	}
	if err != nil {
		return Generation{}, fmt.Errorf("read generation: %w", err)
	}
	return g, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChain(row rowScanner) (Chain, error) {
	var (
		c                Chain
		status           string
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.Target, &status, &c.Generation, &c.Reason, &created, &updated); err != nil {
		return Chain{}, err
	}
	c.Status = ChainStatus(status)
	c.CreatedAt = fromNanos(created)
	c.UpdatedAt = fromNanos(updated)
	return c, nil
}

func scanGeneration(row rowScanner) (Generation, error) {
	var (
		g       Generation
		input   string
		status  string
		created int64
	)
	if err := row.Scan(&g.ChainID, &input, &g.Digest, &status, &created); err != nil {
		return Generation{}, err
	}
	in, err := unmarshalInput(input)
	if err != nil {
		return Generation{}, err
	}
	g.Input = in
	g.Status = GenerationStatus(status)
	g.CreatedAt = fromNanos(created)
	return g, nil
}

func scanEvent(row rowScanner) (Event, error) {
	var (
		e       Event
		payload string
		at      int64
	)
	if err := row.Scan(&e.ID, &e.ChainID, &e.Generation, &e.Seq, &e.Kind, &payload, &at); err != nil {
		return Event{}, err
	}
	e.Payload = []byte(payload)
	e.At = fromNanos(at)
	return e, nil
}

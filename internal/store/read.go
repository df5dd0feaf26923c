package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no compilation exists for a spec hash.
var ErrNotFound = errors.New("compilation not found")

// GetCompilation returns the stored artifact for a spec document hash.
func (s *Store) GetCompilation(ctx context.Context, specHash string) (*Compilation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, spec_hash, artifact_hash, artifact, created_at
		FROM compilations
		WHERE spec_hash = ?
	`, specHash)

	var c Compilation
	var artifact string
	err := row.Scan(&c.ID, &c.SpecHash, &c.ArtifactHash, &artifact, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("spec %s: %w", specHash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get compilation: %w", err)
	}
	c.Artifact = []byte(artifact)
	return &c, nil
}

// ListCompilations returns all stored compilations, oldest first.
// Ordering is deterministic: created_at, then id (UUIDv7, time-ordered).
func (s *Store) ListCompilations(ctx context.Context) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, spec_hash, artifact_hash, artifact, created_at
		FROM compilations
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list compilations: %w", err)
	}
	defer rows.Close()

	var result []Compilation
	for rows.Next() {
		var c Compilation
		var artifact string
		if err := rows.Scan(&c.ID, &c.SpecHash, &c.ArtifactHash, &artifact, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		c.Artifact = []byte(artifact)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}

	if result == nil {
		result = []Compilation{}
	}
	return result, nil
}

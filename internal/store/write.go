package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/probelab/tracept/internal/physical"
)

// Compilation is one stored artifact row.
type Compilation struct {
	ID           string `json:"id"`
	SpecHash     string `json:"spec_hash"`
	ArtifactHash string `json:"artifact_hash"`
	Artifact     []byte `json:"artifact"`
	CreatedAt    int64  `json:"created_at"`
}

// newCompilationID returns a time-ordered unique row id.
// Uses github.com/google/uuid for RFC 4122 compliant UUIDs.
func newCompilationID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SaveCompilation stores the artifact compiled from the spec document
// with the given content hash. Uses ON CONFLICT(spec_hash) DO NOTHING for
// idempotency: re-compiling an already-stored spec keeps the original row
// (compilation is deterministic, so the artifact is the same). Returns
// the stored row either way.
func (s *Store) SaveCompilation(ctx context.Context, specHash string, program *physical.Program) (*Compilation, error) {
	artifact, err := physical.MarshalCanonical(program)
	if err != nil {
		return nil, fmt.Errorf("save compilation: %w", err)
	}
	artifactHash, err := physical.ArtifactHash(program)
	if err != nil {
		return nil, fmt.Errorf("save compilation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compilations
		(id, spec_hash, artifact_hash, artifact, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(spec_hash) DO NOTHING
	`,
		newCompilationID(),
		specHash,
		artifactHash,
		string(artifact),
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("save compilation: %w", err)
	}

	return s.GetCompilation(ctx, specHash)
}

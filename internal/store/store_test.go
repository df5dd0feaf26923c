package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/tracept/internal/ir"
	"github.com/probelab/tracept/internal/physical"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testProgram() *physical.Program {
	return &physical.Program{
		UProbes: []physical.UProbeSpec{{
			BinaryPath:  "/opt/demo/server",
			Symbol:      "main.Handle",
			AttachKind:  physical.AttachEntry,
			Address:     0x46b2a0,
			ProbeFnName: "probe_entry_main_Handle",
		}},
		PerfBuffers: []physical.PerfBufferSpec{{
			Name: "out",
			Output: physical.RecordType{
				Name:   "out_value_t",
				Fields: []physical.Field{{Name: "f1", Type: ir.ScalarInt}},
			},
		}},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestSaveAndGetCompilation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	specHash := physical.SpecHash([]byte("spec document"))
	saved, err := s.SaveCompilation(ctx, specHash, testProgram())
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, specHash, saved.SpecHash)

	wantHash, err := physical.ArtifactHash(testProgram())
	require.NoError(t, err)
	assert.Equal(t, wantHash, saved.ArtifactHash)

	got, err := s.GetCompilation(ctx, specHash)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)

	wantArtifact, err := physical.MarshalCanonical(testProgram())
	require.NoError(t, err)
	assert.Equal(t, wantArtifact, got.Artifact)
}

func TestSaveCompilationIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	specHash := physical.SpecHash([]byte("spec document"))
	first, err := s.SaveCompilation(ctx, specHash, testProgram())
	require.NoError(t, err)

	// Re-saving the same spec keeps the original row.
	second, err := s.SaveCompilation(ctx, specHash, testProgram())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	all, err := s.ListCompilations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetCompilationNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetCompilation(context.Background(), "no-such-hash")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListCompilationsEmpty(t *testing.T) {
	s := openTestStore(t)

	all, err := s.ListCompilations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestListCompilationsOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, doc := range []string{"spec a", "spec b", "spec c"} {
		_, err := s.SaveCompilation(ctx, physical.SpecHash([]byte(doc)), testProgram())
		require.NoError(t, err)
	}

	all, err := s.ListCompilations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].ID, all[i].ID, "UUIDv7 ids are time-ordered")
	}
}

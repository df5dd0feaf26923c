package compiler

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/probelab/tracept/internal/physical"
)

// TestCompileGoldenArtifact pins the canonical serialization of the
// reference scenario's artifact. Any change to probe ordering, generated
// names, field ordering, or field types shows up as a golden diff.
//
// To regenerate the golden file, run:
//
//	go test ./internal/compiler -update
func TestCompileGoldenArtifact(t *testing.T) {
	program, err := Compile(mixedArgDeployment(), testResolver(), Options{})
	require.NoError(t, err)

	data, err := physical.MarshalCanonical(program)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "compile_mixed_arg_types", data)
}

package symbols

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/tracept/internal/ir"
)

func demoTable() FactTable {
	return FactTable{
		Binaries: []BinaryFacts{{
			Path:    "/opt/demo/server",
			Runtime: RuntimeGo,
			Symbols: []SymbolFacts{{
				Symbol:      "main.Handle",
				EntryAddr:   0x46b2a0,
				ReturnAddrs: []uint64{0x46b3f1, 0x46b45c},
				Args: []ArgLocation{
					{Name: "req", Loc: Location{Kind: LocStack, Offset: 8}, Type: ir.ScalarInt},
				},
			}},
		}},
	}
}

func TestStaticResolverResolve(t *testing.T) {
	r := NewStaticResolver(demoTable())

	facts, err := r.Resolve("/opt/demo/server", "main.Handle")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x46b2a0), facts.EntryAddr)
	assert.Len(t, facts.ReturnAddrs, 2)
	assert.Equal(t, RuntimeGo, facts.Runtime, "resolver stamps the binary's runtime onto symbol facts")
}

func TestStaticResolverSymbolNotFound(t *testing.T) {
	r := NewStaticResolver(demoTable())

	_, err := r.Resolve("/opt/demo/server", "main.Missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSymbolNotFound))

	var lookupErr *LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "main.Missing", lookupErr.Symbol)
}

func TestStaticResolverUnknownBinary(t *testing.T) {
	r := NewStaticResolver(demoTable())

	_, err := r.Resolve("/opt/elsewhere/bin", "main.Handle")
	assert.True(t, errors.Is(err, ErrUnsupportedBinaryFormat))
}

func TestSymbolFactsArg(t *testing.T) {
	facts := SymbolFacts{Args: []ArgLocation{
		{Name: "i1", Type: ir.ScalarInt},
		{Name: "i2", Type: ir.ScalarInt64},
	}}

	arg, ok := facts.Arg("i2")
	require.True(t, ok)
	assert.Equal(t, ir.ScalarInt64, arg.Type)

	_, ok = facts.Arg("i3")
	assert.False(t, ok)
}

func TestLoadFactsRoundTrip(t *testing.T) {
	const doc = `
binaries:
  - path: /opt/demo/server
    runtime: go
    symbols:
      - symbol: main.Handle
        entry_addr: 0x46b2a0
        return_addrs: [0x46b3f1]
        args:
          - name: req
            loc: {kind: 0, offset: 8}
            type: INT
`
	path := filepath.Join(t.TempDir(), "facts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r, err := LoadFacts(path)
	require.NoError(t, err)

	facts, err := r.Resolve("/opt/demo/server", "main.Handle")
	require.NoError(t, err)
	assert.Equal(t, RuntimeGo, facts.Runtime)
	assert.Equal(t, uint64(0x46b2a0), facts.EntryAddr)
	require.Len(t, facts.Args, 1)
	assert.Equal(t, ir.ScalarInt, facts.Args[0].Type)
}

func TestLoadFactsRejectsUnknownRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("binaries:\n  - path: /x\n    runtime: erlang\n"), 0o644))

	_, err := LoadFacts(path)
	assert.Error(t, err)
}

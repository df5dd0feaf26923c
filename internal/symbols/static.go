package symbols

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BinaryFacts is the full fact table for one binary: its runtime tag and
// the symbols the resolver knows about.
type BinaryFacts struct {
	Path    string        `json:"path" yaml:"path"`
	Runtime RuntimeTag    `json:"runtime" yaml:"runtime"`
	Symbols []SymbolFacts `json:"symbols" yaml:"symbols"`
}

// FactTable is the serialized form consumed by LoadFacts.
type FactTable struct {
	Binaries []BinaryFacts `json:"binaries" yaml:"binaries"`
}

// StaticResolver serves symbol facts from an in-memory table. Lookups are
// pure map reads, so a StaticResolver is safe for concurrent use.
type StaticResolver struct {
	binaries map[string]*binaryEntry
}

type binaryEntry struct {
	runtime RuntimeTag
	symbols map[string]SymbolFacts
}

// NewStaticResolver builds a resolver from the given fact table.
func NewStaticResolver(table FactTable) *StaticResolver {
	r := &StaticResolver{binaries: make(map[string]*binaryEntry, len(table.Binaries))}
	for _, bin := range table.Binaries {
		entry := &binaryEntry{
			runtime: bin.Runtime,
			symbols: make(map[string]SymbolFacts, len(bin.Symbols)),
		}
		for _, sym := range bin.Symbols {
			sym.Runtime = bin.Runtime
			entry.symbols[sym.Symbol] = sym
		}
		r.binaries[bin.Path] = entry
	}
	return r
}

// LoadFacts reads a YAML fact table and builds a StaticResolver from it.
func LoadFacts(path string) (*StaticResolver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fact table: %w", err)
	}
	var table FactTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parsing fact table %s: %w", path, err)
	}
	return NewStaticResolver(table), nil
}

// Resolve implements Resolver. An unknown binary maps to
// ErrUnsupportedBinaryFormat (the table has no parse of it at all); a known
// binary without the symbol maps to ErrSymbolNotFound.
func (r *StaticResolver) Resolve(binaryPath, symbol string) (*SymbolFacts, error) {
	entry, ok := r.binaries[binaryPath]
	if !ok {
		return nil, &LookupError{BinaryPath: binaryPath, Symbol: symbol, Err: ErrUnsupportedBinaryFormat}
	}
	facts, ok := entry.symbols[symbol]
	if !ok {
		return nil, &LookupError{BinaryPath: binaryPath, Symbol: symbol, Err: ErrSymbolNotFound}
	}
	return &facts, nil
}

// MarshalYAML renders the runtime tag as its display name.
func (t RuntimeTag) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML accepts the display names produced by MarshalYAML.
func (t *RuntimeTag) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "go":
		*t = RuntimeGo
	case "native", "":
		*t = RuntimeNative
	default:
		return fmt.Errorf("unknown runtime tag %q", s)
	}
	return nil
}

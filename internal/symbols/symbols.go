package symbols

import (
	"errors"
	"fmt"

	"github.com/probelab/tracept/internal/ir"
)

// Resolution failure sentinels. A LookupError wraps one of these so callers
// can classify failures with errors.Is while keeping the binary/symbol
// context in the message.
var (
	// ErrSymbolNotFound means the binary parsed cleanly but does not
	// contain the requested symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrUnsupportedBinaryFormat means the object file could not be
	// parsed at all (not ELF, stripped beyond use, wrong architecture).
	ErrUnsupportedBinaryFormat = errors.New("unsupported binary format")
)

// LookupError carries the identity of a failed resolution.
type LookupError struct {
	BinaryPath string
	Symbol     string
	Err        error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("resolving %q in %s: %v", e.Symbol, e.BinaryPath, e.Err)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *LookupError) Unwrap() error { return e.Err }

// RuntimeTag identifies the language runtime of a traced binary.
type RuntimeTag int

const (
	// RuntimeNative is a binary with no scheduler runtime of its own.
	RuntimeNative RuntimeTag = iota
	// RuntimeGo is a binary whose runtime multiplexes goroutines onto
	// OS threads; captured events need goroutine correlation.
	RuntimeGo
)

// String returns the runtime tag's display name.
func (t RuntimeTag) String() string {
	switch t {
	case RuntimeGo:
		return "go"
	default:
		return "native"
	}
}

// LocationKind distinguishes where an argument lives at the probe site.
type LocationKind int

const (
	// LocStack is a stack slot at a fixed offset from the stack pointer.
	LocStack LocationKind = iota
	// LocRegister is a machine register identified by DWARF number.
	LocRegister
)

// Location is an argument's storage location at function entry, as
// reported by the debug-information reader.
type Location struct {
	Kind   LocationKind `json:"kind" yaml:"kind"`
	Offset int64        `json:"offset" yaml:"offset"` // stack offset or register number
}

// ArgLocation pairs a named argument with its location and scalar type.
type ArgLocation struct {
	Name string        `json:"name" yaml:"name"`
	Loc  Location      `json:"loc" yaml:"loc"`
	Type ir.ScalarType `json:"type" yaml:"type"`
}

// SymbolFacts is everything the compiler needs to know about one symbol.
//
// ReturnAddrs lists every RET site in the function body. Return-side
// instrumentation attaches at each of them rather than using a uretprobe:
// a runtime that moves goroutine stacks invalidates the trampoline a
// uretprobe plants on the stack.
type SymbolFacts struct {
	Symbol      string        `json:"symbol" yaml:"symbol"`
	EntryAddr   uint64        `json:"entry_addr" yaml:"entry_addr"`
	ReturnAddrs []uint64      `json:"return_addrs" yaml:"return_addrs"`
	Runtime     RuntimeTag    `json:"runtime" yaml:"runtime"`
	Args        []ArgLocation `json:"args" yaml:"args"`
}

// Arg returns the named argument's location facts, if the symbol has one.
func (f *SymbolFacts) Arg(name string) (ArgLocation, bool) {
	for _, a := range f.Args {
		if a.Name == name {
			return a, true
		}
	}
	return ArgLocation{}, false
}

// Resolver resolves symbols in traced binaries. Lookups are blocking,
// synchronous, and deterministic for a given binary: the same path and
// symbol always yield the same facts or the same failure.
type Resolver interface {
	Resolve(binaryPath, symbol string) (*SymbolFacts, error)
}

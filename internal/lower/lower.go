package lower

import (
	"errors"
	"fmt"

	"github.com/probelab/tracept/internal/ir"
	"github.com/probelab/tracept/internal/physical"
	"github.com/probelab/tracept/internal/symbols"
)

// ResolvedCapture is one capture with its expression resolved against the
// symbol's facts: the variable id, its kind, the scalar type the value
// will carry, and where the value lives at the probe site.
type ResolvedCapture struct {
	ID   string
	Kind ir.CaptureKind
	Type ir.ScalarType

	// Expr is the parsed source expression. Nil for latency captures,
	// which have no expression (the value is computed from timestamps).
	Expr ir.Expr
	// Loc is set when Expr is a NamedArg.
	Loc symbols.Location
}

// LoweredProbe is the physical expansion of one logical probe: its attach
// specs (entry first, then one spec per return site), the resolved
// captures in declaration order, and the pass-through output actions the
// schema synthesizer consumes.
type LoweredProbe struct {
	ProbeName     string
	Symbol        string
	UProbes       []physical.UProbeSpec
	Captures      []ResolvedCapture
	OutputActions []ir.OutputAction
}

// Capture returns the resolved capture with the given variable id.
func (p *LoweredProbe) Capture(id string) (ResolvedCapture, bool) {
	for _, c := range p.Captures {
		if c.ID == id {
			return c, true
		}
	}
	return ResolvedCapture{}, false
}

// Engine lowers the probes of one program against one binary. It owns the
// probe-function namespace: generated handler names must be unique across
// distinct placements, and the engine reports collisions at lowering time
// rather than letting the loader fail.
type Engine struct {
	resolver   symbols.Resolver
	binaryPath string
	fnNames    map[string]string // probe fn name -> owning probe name
}

// NewEngine creates a lowering engine for one binary. One engine serves
// one compile invocation; it holds no state beyond the name registry.
func NewEngine(resolver symbols.Resolver, binaryPath string) *Engine {
	return &Engine{
		resolver:   resolver,
		binaryPath: binaryPath,
		fnNames:    make(map[string]string),
	}
}

// Lower expands one logical probe. On failure it returns a *Error
// attributed to the probe and registers nothing, so a failed probe leaves
// no trace in the name registry or the returned artifact.
func (e *Engine) Lower(probe *ir.Probe) (*LoweredProbe, error) {
	symbol := probe.Tracepoint.Symbol

	facts, err := e.resolver.Resolve(e.binaryPath, symbol)
	if err != nil {
		return nil, e.resolveError(probe, symbol, err)
	}

	needEntry, needReturn, lErr := placements(probe)
	if lErr != nil {
		return nil, lErr
	}

	lowered := &LoweredProbe{
		ProbeName:     probe.Name,
		Symbol:        symbol,
		OutputActions: probe.OutputActions,
	}

	for _, arg := range probe.Args {
		rc, lErr := e.resolveCapture(probe, arg, ir.KindArg, facts)
		if lErr != nil {
			return nil, lErr
		}
		lowered.Captures = append(lowered.Captures, rc)
	}
	for _, rv := range probe.RetVals {
		rc, lErr := e.resolveCapture(probe, rv, ir.KindRetVal, facts)
		if lErr != nil {
			return nil, lErr
		}
		lowered.Captures = append(lowered.Captures, rc)
	}
	if probe.FunctionLatency != nil {
		lowered.Captures = append(lowered.Captures, ResolvedCapture{
			ID:   probe.FunctionLatency.ID,
			Kind: ir.KindLatency,
			Type: ir.ScalarInt64,
		})
	}

	if needReturn && len(facts.ReturnAddrs) == 0 {
		return nil, &Error{
			Code:      ErrNoReturnSites,
			ProbeName: probe.Name,
			Symbol:    symbol,
			Message:   fmt.Sprintf("symbol %q has no resolved return sites", symbol),
		}
	}

	// Name registration is deferred until the whole probe resolved, so a
	// failed probe cannot poison the namespace for later ones.
	var names []string
	if needEntry {
		name := physical.ProbeFnName(physical.AttachEntry, symbol)
		names = append(names, name)
		lowered.UProbes = append(lowered.UProbes, physical.UProbeSpec{
			BinaryPath:  e.binaryPath,
			Symbol:      symbol,
			AttachKind:  physical.AttachEntry,
			Address:     facts.EntryAddr,
			ProbeFnName: name,
		})
	}
	if needReturn {
		// All return sites of one placement share a handler: the loader
		// binds the function once and attaches it at each address.
		name := physical.ProbeFnName(physical.AttachReturn, symbol)
		names = append(names, name)
		for _, addr := range facts.ReturnAddrs {
			lowered.UProbes = append(lowered.UProbes, physical.UProbeSpec{
				BinaryPath:  e.binaryPath,
				Symbol:      symbol,
				AttachKind:  physical.AttachReturn,
				Address:     addr,
				ProbeFnName: name,
			})
		}
	}

	for _, name := range names {
		if owner, ok := e.fnNames[name]; ok {
			return nil, &Error{
				Code:      ErrDuplicateProbeFunction,
				ProbeName: probe.Name,
				Symbol:    symbol,
				Message:   fmt.Sprintf("generated probe function %q already used by probe %q", name, owner),
			}
		}
	}
	for _, name := range names {
		e.fnNames[name] = probe.Name
	}

	return lowered, nil
}

// Reserve claims a probe function name generated outside Lower, such as
// an auxiliary runtime probe planned per binary. Handler names must be
// unique across the whole artifact, so planners route theirs through the
// same registry as user probes.
func (e *Engine) Reserve(spec physical.UProbeSpec) error {
	if owner, ok := e.fnNames[spec.ProbeFnName]; ok {
		return &Error{
			Code:      ErrDuplicateProbeFunction,
			ProbeName: spec.Symbol,
			Symbol:    spec.Symbol,
			Message:   fmt.Sprintf("generated probe function %q already used by probe %q", spec.ProbeFnName, owner),
		}
	}
	e.fnNames[spec.ProbeFnName] = spec.Symbol
	return nil
}

// placements decides which physical placements a probe needs and rejects
// capture kinds impossible at the declared placement.
func placements(probe *ir.Probe) (needEntry, needReturn bool, err *Error) {
	latency := probe.FunctionLatency != nil
	switch probe.Tracepoint.Type {
	case ir.PlacementLogical:
		// Latency forces both sides even without captures on that side.
		needEntry = len(probe.Args) > 0 || latency || len(probe.RetVals) == 0
		needReturn = len(probe.RetVals) > 0 || latency
	case ir.PlacementEntry:
		if len(probe.RetVals) > 0 || latency {
			return false, false, &Error{
				Code:      ErrPlacementMismatch,
				ProbeName: probe.Name,
				Symbol:    probe.Tracepoint.Symbol,
				Message:   "return values and latency require a return placement; tracepoint type is ENTRY",
			}
		}
		needEntry = true
	case ir.PlacementReturn:
		if len(probe.Args) > 0 || latency {
			return false, false, &Error{
				Code:      ErrPlacementMismatch,
				ProbeName: probe.Name,
				Symbol:    probe.Tracepoint.Symbol,
				Message:   "arguments and latency require an entry placement; tracepoint type is RETURN",
			}
		}
		needReturn = true
	default:
		return false, false, &Error{
			Code:      ErrPlacementMismatch,
			ProbeName: probe.Name,
			Symbol:    probe.Tracepoint.Symbol,
			Message:   fmt.Sprintf("unknown placement kind %q", probe.Tracepoint.Type),
		}
	}
	return needEntry, needReturn, nil
}

// resolveCapture maps one declared capture onto the symbol's facts.
func (e *Engine) resolveCapture(probe *ir.Probe, c ir.Capture, kind ir.CaptureKind, facts *symbols.SymbolFacts) (ResolvedCapture, *Error) {
	expr, err := ir.ParseExpr(c.Expr)
	if err != nil {
		return ResolvedCapture{}, &Error{
			Code:      ErrUnresolvedExpression,
			ProbeName: probe.Name,
			Symbol:    probe.Tracepoint.Symbol,
			CaptureID: c.ID,
			Message:   err.Error(),
		}
	}

	resolved := ResolvedCapture{ID: c.ID, Kind: kind, Expr: expr}

	switch ex := expr.(type) {
	case ir.NamedArg:
		arg, ok := facts.Arg(ex.Name)
		if !ok {
			return ResolvedCapture{}, &Error{
				Code:      ErrUnresolvedExpression,
				ProbeName: probe.Name,
				Symbol:    probe.Tracepoint.Symbol,
				CaptureID: c.ID,
				Message:   fmt.Sprintf("symbol %q has no argument %q", probe.Tracepoint.Symbol, ex.Name),
			}
		}
		resolved.Loc = arg.Loc
		resolved.Type = arg.Type
	case ir.ReturnSlot:
		if kind != ir.KindRetVal {
			return ResolvedCapture{}, &Error{
				Code:      ErrUnresolvedExpression,
				ProbeName: probe.Name,
				Symbol:    probe.Tracepoint.Symbol,
				CaptureID: c.ID,
				Message:   fmt.Sprintf("return slot %s is only readable at return", ex),
			}
		}
		// Return slot types are not in the symbol facts; the generic
		// integer tag is refined by the schema synthesizer's fallback.
		resolved.Type = ir.ScalarUnknown
	}

	if resolved.Type == "" || resolved.Type == ir.ScalarUnknown {
		resolved.Type = ir.ScalarInt
	}
	return resolved, nil
}

// resolveError classifies a resolver failure into a lowering error.
func (e *Engine) resolveError(probe *ir.Probe, symbol string, err error) *Error {
	code := ErrSymbolNotFound
	if errors.Is(err, symbols.ErrUnsupportedBinaryFormat) {
		code = ErrUnsupportedBinaryFormat
	}
	return &Error{
		Code:      code,
		ProbeName: probe.Name,
		Symbol:    symbol,
		Message:   err.Error(),
		Err:       err,
	}
}

package goruntime

import (
	"github.com/probelab/tracept/internal/ir"
	"github.com/probelab/tracept/internal/physical"
	"github.com/probelab/tracept/internal/symbols"
)

// GoidTrackingSymbol is the scheduler entry point hooked to observe
// goroutine state transitions. It runs on every transition, so a single
// entry probe there keeps the thread-to-goroutine lookup current.
const GoidTrackingSymbol = "runtime.casgstatus"

// Planner decides per binary whether auxiliary correlation probes are
// required and emits each one exactly once. The per-binary registry is
// explicit state owned by the planner, scoped to one compile invocation;
// there is no global cache.
type Planner struct {
	resolver symbols.Resolver
	planned  map[string]bool // binary path -> aux probe already emitted
}

// NewPlanner creates a planner backed by the given resolver. One planner
// serves one compile invocation.
func NewPlanner(resolver symbols.Resolver) *Planner {
	return &Planner{
		resolver: resolver,
		planned:  make(map[string]bool),
	}
}

// Plan returns the auxiliary UProbeSpecs required for a program with the
// given runtime tag in the given binary. For a native runtime, or for a
// binary whose auxiliary probes were already planned, it returns nothing.
// Resolution failures surface unchanged so the caller can attribute them.
func (p *Planner) Plan(binaryPath string, runtime symbols.RuntimeTag) ([]physical.UProbeSpec, error) {
	if runtime != symbols.RuntimeGo {
		return nil, nil
	}
	if p.planned[binaryPath] {
		return nil, nil
	}

	facts, err := p.resolver.Resolve(binaryPath, GoidTrackingSymbol)
	if err != nil {
		return nil, err
	}

	p.planned[binaryPath] = true
	return []physical.UProbeSpec{{
		BinaryPath:  binaryPath,
		Symbol:      GoidTrackingSymbol,
		AttachKind:  physical.AttachEntry,
		Address:     facts.EntryAddr,
		ProbeFnName: physical.ProbeFnName(physical.AttachEntry, GoidTrackingSymbol),
	}}, nil
}

// MandatoryFields returns the correlation fields injected ahead of user
// fields in every output record, in their fixed order. The goroutine id
// column exists only for Go runtimes. The slice is freshly allocated;
// callers may append to it.
func MandatoryFields(runtime symbols.RuntimeTag) []physical.Field {
	fields := []physical.Field{
		{Name: "tgid_", Type: ir.ScalarInt32},
		{Name: "tgid_start_time_", Type: ir.ScalarUInt64},
		{Name: "time_", Type: ir.ScalarUInt64},
	}
	if runtime == symbols.RuntimeGo {
		fields = append(fields, physical.Field{Name: "goid_", Type: ir.ScalarInt64})
	}
	return fields
}

package loader

import (
	"fmt"

	"github.com/probelab/tracept/internal/physical"
)

// Plan is the validated attach work for one physical program: every
// uprobe spec grouped under one executable, plus the perf buffers to
// open. Building a plan catches artifact inconsistencies before any
// kernel interaction happens.
type Plan struct {
	BinaryPath  string
	Attachments []physical.UProbeSpec
	Buffers     []string
}

// NewPlan validates a physical program and lays out its attach work.
// The artifact must target a single executable, carry resolved addresses
// and probe function names throughout, and not attach the same function
// twice at one address.
func NewPlan(p *physical.Program) (*Plan, error) {
	if p == nil || len(p.UProbes) == 0 {
		return nil, fmt.Errorf("physical program has no uprobe specs")
	}

	plan := &Plan{BinaryPath: p.UProbes[0].BinaryPath}
	attached := make(map[string]bool, len(p.UProbes))
	for _, spec := range p.UProbes {
		if spec.BinaryPath != plan.BinaryPath {
			return nil, fmt.Errorf("artifact spans binaries %q and %q; one plan per binary", plan.BinaryPath, spec.BinaryPath)
		}
		if spec.ProbeFnName == "" {
			return nil, fmt.Errorf("uprobe on %q has no probe function name", spec.Symbol)
		}
		if spec.Address == 0 {
			return nil, fmt.Errorf("uprobe %q on %q has no resolved address", spec.ProbeFnName, spec.Symbol)
		}
		key := fmt.Sprintf("%s@%#x", spec.ProbeFnName, spec.Address)
		if attached[key] {
			return nil, fmt.Errorf("duplicate attachment %s", key)
		}
		attached[key] = true
		plan.Attachments = append(plan.Attachments, spec)
	}

	seen := make(map[string]bool, len(p.PerfBuffers))
	for _, buf := range p.PerfBuffers {
		if buf.Name == "" {
			return nil, fmt.Errorf("perf buffer with empty name")
		}
		if seen[buf.Name] {
			return nil, fmt.Errorf("duplicate perf buffer %q", buf.Name)
		}
		seen[buf.Name] = true
		plan.Buffers = append(plan.Buffers, buf.Name)
	}

	return plan, nil
}

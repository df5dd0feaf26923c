package compiler

import (
	"github.com/probelab/tracept/internal/goruntime"
	"github.com/probelab/tracept/internal/ir"
	"github.com/probelab/tracept/internal/lower"
	"github.com/probelab/tracept/internal/physical"
	"github.com/probelab/tracept/internal/schema"
	"github.com/probelab/tracept/internal/symbols"
)

// Mode controls how compile errors are handled.
type Mode int

const (
	// ModeFailFast stops on the first error encountered.
	ModeFailFast Mode = iota
	// ModeBestEffort skips failed probes and compiles the rest,
	// returning the accumulated errors alongside the partial artifact.
	ModeBestEffort
)

// Options configures one compile invocation.
type Options struct {
	Mode Mode
}

// runtimeTag maps a program's declared language to its runtime tag. The
// language tag is authoritative for correlation planning; the resolver's
// per-binary tag only corroborates it.
func runtimeTag(lang ir.Language) symbols.RuntimeTag {
	if lang == ir.LangGo {
		return symbols.RuntimeGo
	}
	return symbols.RuntimeNative
}

// Compile lowers a tracepoint deployment into its physical program.
//
// Structural validation failures abort the compile in both modes: a
// malformed deployment has no meaningful partial artifact. Per-probe
// failures honor the mode. In best-effort mode the returned program
// contains everything that compiled, and the error (a CompileErrors) lists
// what did not; a failed probe contributes no uprobe specs and no schema
// bindings.
func Compile(dep *ir.TracepointDeployment, resolver symbols.Resolver, opts Options) (*physical.Program, error) {
	if verrs := ir.Validate(dep); len(verrs) > 0 {
		errs := make(CompileErrors, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return nil, errs
	}

	binaryPath := dep.DeploymentSpec.Path
	engine := lower.NewEngine(resolver, binaryPath)
	planner := goruntime.NewPlanner(resolver)

	var userProbes []physical.UProbeSpec
	var auxProbes []physical.UProbeSpec
	var perfBuffers []physical.PerfBufferSpec
	var errs CompileErrors

	record := func(progIdx int, err error) bool {
		errs = append(errs, &ProgramError{Program: progIdx, Err: err})
		return opts.Mode == ModeFailFast
	}

	for i := range dep.Tracepoints {
		prog := &dep.Tracepoints[i].Program
		runtime := runtimeTag(prog.Language)
		synth := schema.NewSynthesizer(prog.Outputs, runtime)

		for j := range prog.Probes {
			lowered, err := engine.Lower(&prog.Probes[j])
			if err != nil {
				if record(i, err) {
					return nil, errs
				}
				continue
			}
			if applyErrs := synth.Apply(lowered); len(applyErrs) > 0 {
				// Referential failures drop the whole probe: its uprobe
				// specs never reach the artifact.
				for _, err := range applyErrs {
					if record(i, err) {
						return nil, errs
					}
				}
				continue
			}
			userProbes = append(userProbes, lowered.UProbes...)
		}

		aux, err := planner.Plan(binaryPath, runtime)
		if err != nil {
			if record(i, err) {
				return nil, errs
			}
		}
		for _, spec := range aux {
			// Auxiliary handlers share the user probes' name space.
			if rerr := engine.Reserve(spec); rerr != nil {
				if record(i, rerr) {
					return nil, errs
				}
				continue
			}
			auxProbes = append(auxProbes, spec)
		}

		buffers, bufErrs := synth.PerfBuffers()
		for _, err := range bufErrs {
			if record(i, err) {
				return nil, errs
			}
		}
		perfBuffers = append(perfBuffers, buffers...)
	}

	program := assemble(userProbes, auxProbes, perfBuffers)
	if len(errs) > 0 {
		return program, errs
	}
	return program, nil
}

// assemble concatenates the physical pieces in their final order: user
// probes in declaration order, auxiliary probes after, perf buffers in
// output declaration order.
func assemble(user, aux []physical.UProbeSpec, buffers []physical.PerfBufferSpec) *physical.Program {
	probes := make([]physical.UProbeSpec, 0, len(user)+len(aux))
	probes = append(probes, user...)
	probes = append(probes, aux...)
	return &physical.Program{
		UProbes:     probes,
		PerfBuffers: buffers,
	}
}

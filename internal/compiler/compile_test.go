package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/tracept/internal/ir"
	"github.com/probelab/tracept/internal/lower"
	"github.com/probelab/tracept/internal/physical"
	"github.com/probelab/tracept/internal/schema"
	"github.com/probelab/tracept/internal/symbols"
)

const goBinary = "/opt/testdata/dummy_go_binary"

// testResolver serves the fact table every compiler test compiles against.
func testResolver() *symbols.StaticResolver {
	return symbols.NewStaticResolver(symbols.FactTable{
		Binaries: []symbols.BinaryFacts{
			{
				Path:    goBinary,
				Runtime: symbols.RuntimeGo,
				Symbols: []symbols.SymbolFacts{
					{
						Symbol:      "main.MixedArgTypes",
						EntryAddr:   0x46b2a0,
						ReturnAddrs: []uint64{0x46b3f1, 0x46b45c},
						Args: []symbols.ArgLocation{
							{Name: "i1", Loc: symbols.Location{Kind: symbols.LocStack, Offset: 8}, Type: ir.ScalarInt},
							{Name: "i2", Loc: symbols.Location{Kind: symbols.LocStack, Offset: 24}, Type: ir.ScalarInt},
							{Name: "i3", Loc: symbols.Location{Kind: symbols.LocStack, Offset: 33}, Type: ir.ScalarInt},
						},
					},
					{
						Symbol:      "main.SimpleFunc",
						EntryAddr:   0x460000,
						ReturnAddrs: []uint64{0x460100},
						Args: []symbols.ArgLocation{
							{Name: "x", Loc: symbols.Location{Kind: symbols.LocStack, Offset: 8}, Type: ir.ScalarInt64},
						},
					},
					{Symbol: "runtime.casgstatus", EntryAddr: 0x439e80},
				},
			},
			{
				Path:    "/opt/testdata/native_bin",
				Runtime: symbols.RuntimeNative,
				Symbols: []symbols.SymbolFacts{{
					Symbol:      "target_fn",
					EntryAddr:   0x1000,
					ReturnAddrs: []uint64{0x1080},
					Args: []symbols.ArgLocation{
						{Name: "a", Loc: symbols.Location{Kind: symbols.LocRegister, Offset: 5}, Type: ir.ScalarInt32},
					},
				}},
			},
		},
	})
}

// mixedArgDeployment is the reference scenario: one Go program, one
// logical probe with three args, one return value, and a latency capture,
// all written to one output.
func mixedArgDeployment() *ir.TracepointDeployment {
	return &ir.TracepointDeployment{
		DeploymentSpec: ir.DeploymentSpec{Path: goBinary},
		Tracepoints: []ir.TracepointProgram{{
			Program: ir.Program{
				Language: ir.LangGo,
				Outputs: []ir.Output{{
					Name:   "probe_output",
					Fields: []string{"f1", "f2", "f3", "f4", "latency"},
				}},
				Probes: []ir.Probe{{
					Name: "probe0",
					Tracepoint: ir.TracepointSpec{
						Symbol: "main.MixedArgTypes",
						Type:   ir.PlacementLogical,
					},
					Args: []ir.Capture{
						{ID: "arg0", Expr: "i1"},
						{ID: "arg1", Expr: "i2"},
						{ID: "arg2", Expr: "i3"},
					},
					RetVals:         []ir.Capture{{ID: "retval0", Expr: "$6"}},
					FunctionLatency: &ir.LatencyCapture{ID: "latency"},
					OutputActions: []ir.OutputAction{{
						OutputName:    "probe_output",
						VariableNames: []string{"arg0", "arg1", "arg2", "retval0", "latency"},
					}},
				}},
			},
		}},
	}
}

func TestCompileMixedArgTypes(t *testing.T) {
	program, err := Compile(mixedArgDeployment(), testResolver(), Options{})
	require.NoError(t, err)

	// 1 entry + 2 return sites for the user probe, then the auxiliary
	// scheduler probe.
	require.Len(t, program.UProbes, 4)

	entry := program.UProbes[0]
	assert.Equal(t, "main.MixedArgTypes", entry.Symbol)
	assert.Equal(t, physical.AttachEntry, entry.AttachKind)
	assert.Equal(t, "probe_entry_main_MixedArgTypes", entry.ProbeFnName)

	for _, ret := range program.UProbes[1:3] {
		assert.Equal(t, physical.AttachReturn, ret.AttachKind)
		assert.Equal(t, "probe_return_main_MixedArgTypes", ret.ProbeFnName)
	}

	aux := program.UProbes[3]
	assert.Equal(t, goBinary, aux.BinaryPath)
	assert.Equal(t, "runtime.casgstatus", aux.Symbol)
	assert.Equal(t, physical.AttachEntry, aux.AttachKind)
	assert.Equal(t, "probe_entry_runtime_casgstatus", aux.ProbeFnName)

	require.Len(t, program.PerfBuffers, 1)
	buf := program.PerfBuffers[0]
	assert.Equal(t, "probe_output", buf.Name)
	assert.Equal(t, "probe_output_value_t", buf.Output.Name)

	want := []physical.Field{
		{Name: "tgid_", Type: ir.ScalarInt32},
		{Name: "tgid_start_time_", Type: ir.ScalarUInt64},
		{Name: "time_", Type: ir.ScalarUInt64},
		{Name: "goid_", Type: ir.ScalarInt64},
		{Name: "f1", Type: ir.ScalarInt},
		{Name: "f2", Type: ir.ScalarInt},
		{Name: "f3", Type: ir.ScalarInt},
		{Name: "f4", Type: ir.ScalarInt},
		{Name: "latency", Type: ir.ScalarInt64},
	}
	assert.Equal(t, want, buf.Output.Fields)
}

func TestCompileDeterministic(t *testing.T) {
	first, err := Compile(mixedArgDeployment(), testResolver(), Options{})
	require.NoError(t, err)
	second, err := Compile(mixedArgDeployment(), testResolver(), Options{})
	require.NoError(t, err)

	a, err := physical.MarshalCanonical(first)
	require.NoError(t, err)
	b, err := physical.MarshalCanonical(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical inputs must produce byte-identical artifacts")
}

func TestCompileAuxProbeOncePerBinary(t *testing.T) {
	// Two probes in one program plus a second program against the same
	// binary: still exactly one scheduler correlation probe.
	dep := mixedArgDeployment()
	prog := &dep.Tracepoints[0].Program
	prog.Outputs = append(prog.Outputs, ir.Output{Name: "simple_output", Fields: []string{"s1"}})
	prog.Probes = append(prog.Probes, ir.Probe{
		Name:       "probe1",
		Tracepoint: ir.TracepointSpec{Symbol: "main.SimpleFunc", Type: ir.PlacementLogical},
		Args:       []ir.Capture{{ID: "sx", Expr: "x"}},
		OutputActions: []ir.OutputAction{{
			OutputName:    "simple_output",
			VariableNames: []string{"sx"},
		}},
	})

	program, err := Compile(dep, testResolver(), Options{})
	require.NoError(t, err)

	auxCount := 0
	for _, spec := range program.UProbes {
		if spec.Symbol == "runtime.casgstatus" {
			auxCount++
		}
	}
	assert.Equal(t, 1, auxCount)

	// Aux probe sits after every user probe.
	assert.Equal(t, "runtime.casgstatus", program.UProbes[len(program.UProbes)-1].Symbol)
}

func TestCompileNativeProgram(t *testing.T) {
	dep := &ir.TracepointDeployment{
		DeploymentSpec: ir.DeploymentSpec{Path: "/opt/testdata/native_bin"},
		Tracepoints: []ir.TracepointProgram{{
			Program: ir.Program{
				Language: ir.LangCPP,
				Outputs:  []ir.Output{{Name: "out", Fields: []string{"v"}}},
				Probes: []ir.Probe{{
					Name:          "p0",
					Tracepoint:    ir.TracepointSpec{Symbol: "target_fn", Type: ir.PlacementLogical},
					Args:          []ir.Capture{{ID: "a0", Expr: "a"}},
					OutputActions: []ir.OutputAction{{OutputName: "out", VariableNames: []string{"a0"}}},
				}},
			},
		}},
	}

	program, err := Compile(dep, testResolver(), Options{})
	require.NoError(t, err)

	for _, spec := range program.UProbes {
		assert.NotEqual(t, "runtime.casgstatus", spec.Symbol, "native programs need no scheduler probe")
	}

	fields := program.PerfBuffers[0].Output.Fields
	require.Len(t, fields, 4)
	assert.Equal(t, "tgid_", fields[0].Name)
	assert.Equal(t, "v", fields[3].Name)
	for _, f := range fields {
		assert.NotEqual(t, "goid_", f.Name)
	}
}

func TestCompileValidationFailure(t *testing.T) {
	dep := mixedArgDeployment()
	dep.DeploymentSpec.Path = ""

	program, err := Compile(dep, testResolver(), Options{Mode: ModeBestEffort})
	assert.Nil(t, program, "structural validation failures produce no artifact in any mode")
	require.Error(t, err)

	var cErrs CompileErrors
	require.True(t, errors.As(err, &cErrs))
	require.Len(t, cErrs, 1)
	vErr, ok := cErrs[0].(ir.ValidationError)
	require.True(t, ok)
	assert.Equal(t, ir.ErrDeploymentPathEmpty, vErr.Code)
}

func TestCompileUnknownVariableReference(t *testing.T) {
	dep := mixedArgDeployment()
	probe := &dep.Tracepoints[0].Program.Probes[0]
	probe.OutputActions[0].VariableNames = append(probe.OutputActions[0].VariableNames, "ghost")

	_, err := Compile(dep, testResolver(), Options{})
	require.Error(t, err)

	var sErr *schema.Error
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, schema.ErrUnknownVariableReference, sErr.Code)
	assert.Equal(t, "ghost", sErr.VariableID)
}

func TestCompileFailFastStopsAtFirstError(t *testing.T) {
	dep := mixedArgDeployment()
	prog := &dep.Tracepoints[0].Program
	prog.Probes[0].Args[0].Expr = "nope"
	prog.Probes = append(prog.Probes, ir.Probe{
		Name:       "probe1",
		Tracepoint: ir.TracepointSpec{Symbol: "main.AlsoMissing", Type: ir.PlacementLogical},
	})

	program, err := Compile(dep, testResolver(), Options{Mode: ModeFailFast})
	assert.Nil(t, program)
	require.Error(t, err)

	var cErrs CompileErrors
	require.True(t, errors.As(err, &cErrs))
	assert.Len(t, cErrs, 1)
}

func TestCompileBestEffortSkipsFailedProbe(t *testing.T) {
	dep := mixedArgDeployment()
	prog := &dep.Tracepoints[0].Program
	prog.Outputs = append(prog.Outputs, ir.Output{Name: "simple_output", Fields: []string{"s1"}})
	prog.Probes = append(prog.Probes, ir.Probe{
		Name:       "probe1",
		Tracepoint: ir.TracepointSpec{Symbol: "main.SimpleFunc", Type: ir.PlacementLogical},
		Args:       []ir.Capture{{ID: "sx", Expr: "x"}},
		OutputActions: []ir.OutputAction{{
			OutputName:    "simple_output",
			VariableNames: []string{"sx"},
		}},
	})
	// Break the first probe's expression resolution.
	prog.Probes[0].Args[0].Expr = "missing_arg"

	program, err := Compile(dep, testResolver(), Options{Mode: ModeBestEffort})
	require.Error(t, err)
	require.NotNil(t, program, "best-effort returns the artifact for probes that compiled")

	// probe0 contributed nothing; probe1 and the aux probe survive.
	for _, spec := range program.UProbes {
		assert.NotEqual(t, "main.MixedArgTypes", spec.Symbol)
	}
	symbolsSeen := make(map[string]bool)
	for _, spec := range program.UProbes {
		symbolsSeen[spec.Symbol] = true
	}
	assert.True(t, symbolsSeen["main.SimpleFunc"])
	assert.True(t, symbolsSeen["runtime.casgstatus"])

	// probe_output never got its fields bound, so only simple_output
	// synthesized; the unbound output is part of the reported errors.
	require.Len(t, program.PerfBuffers, 1)
	assert.Equal(t, "simple_output", program.PerfBuffers[0].Name)

	var cErrs CompileErrors
	require.True(t, errors.As(err, &cErrs))
	var lErr *lower.Error
	require.True(t, errors.As(cErrs[0], &lErr))
	assert.Equal(t, lower.ErrUnresolvedExpression, lErr.Code)
}

func TestCompileSymbolNotFoundAttributedToProbe(t *testing.T) {
	dep := mixedArgDeployment()
	dep.Tracepoints[0].Program.Probes[0].Tracepoint.Symbol = "main.DoesNotExist"

	_, err := Compile(dep, testResolver(), Options{})
	require.Error(t, err)

	var lErr *lower.Error
	require.True(t, errors.As(err, &lErr))
	assert.Equal(t, lower.ErrSymbolNotFound, lErr.Code)
	assert.Equal(t, "probe0", lErr.ProbeName)

	var pErr *ProgramError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 0, pErr.Program)
}

func TestCompileUserProbeOnGoidTrackingSymbol(t *testing.T) {
	// A user probe on runtime.casgstatus generates the same handler name
	// as the auxiliary goroutine-tracking probe. The collision has to
	// surface as a duplicate-function error, not a duplicated spec.
	dep := mixedArgDeployment()
	prog := &dep.Tracepoints[0].Program
	prog.Probes = append(prog.Probes, ir.Probe{
		Name: "sched_probe",
		Tracepoint: ir.TracepointSpec{
			Symbol: "runtime.casgstatus",
			Type:   ir.PlacementEntry,
		},
	})

	program, err := Compile(dep, testResolver(), Options{})
	assert.Nil(t, program)
	require.Error(t, err)

	var lErr *lower.Error
	require.True(t, errors.As(err, &lErr))
	assert.Equal(t, lower.ErrDuplicateProbeFunction, lErr.Code)

	var pErr *ProgramError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 0, pErr.Program)
}

func TestCompileBestEffortDropsCollidingAuxProbe(t *testing.T) {
	dep := mixedArgDeployment()
	prog := &dep.Tracepoints[0].Program
	prog.Probes = append(prog.Probes, ir.Probe{
		Name: "sched_probe",
		Tracepoint: ir.TracepointSpec{
			Symbol: "runtime.casgstatus",
			Type:   ir.PlacementEntry,
		},
	})

	program, err := Compile(dep, testResolver(), Options{Mode: ModeBestEffort})
	require.Error(t, err)
	require.NotNil(t, program)

	counts := make(map[string]int)
	for _, spec := range program.UProbes {
		counts[spec.ProbeFnName]++
	}
	assert.Equal(t, 1, counts["probe_entry_runtime_casgstatus"])
	for name, n := range counts {
		assert.Equal(t, 1, n, "probe_fn_name %q duplicated", name)
	}
}

func TestCompileArtifactHashStable(t *testing.T) {
	program, err := Compile(mixedArgDeployment(), testResolver(), Options{})
	require.NoError(t, err)

	h1, err := physical.ArtifactHash(program)
	require.NoError(t, err)

	program2, err := Compile(mixedArgDeployment(), testResolver(), Options{})
	require.NoError(t, err)
	h2, err := physical.ArtifactHash(program2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

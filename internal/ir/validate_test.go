package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validDeployment returns a minimal deployment that passes validation.
func validDeployment() *TracepointDeployment {
	return &TracepointDeployment{
		DeploymentSpec: DeploymentSpec{Path: "/usr/bin/demo"},
		Tracepoints: []TracepointProgram{{
			Program: Program{
				Language: LangGo,
				Outputs: []Output{
					{Name: "probe_output", Fields: []string{"f1", "latency"}},
				},
				Probes: []Probe{{
					Name: "probe0",
					Tracepoint: TracepointSpec{
						Symbol: "main.Handle",
						Type:   PlacementLogical,
					},
					Args:            []Capture{{ID: "arg0", Expr: "i1"}},
					FunctionLatency: &LatencyCapture{ID: "lat0"},
					OutputActions: []OutputAction{{
						OutputName:    "probe_output",
						VariableNames: []string{"arg0", "lat0"},
					}},
				}},
			},
		}},
	}
}

func TestValidateValidDeployment(t *testing.T) {
	errs := Validate(validDeployment())
	assert.Empty(t, errs, "valid deployment should have no errors")
}

func TestValidateEmptyDeploymentPath(t *testing.T) {
	dep := validDeployment()
	dep.DeploymentSpec.Path = "  "

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDeploymentPathEmpty, errs[0].Code)
}

func TestValidateNoTracepoints(t *testing.T) {
	dep := validDeployment()
	dep.Tracepoints = nil

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNoTracepoints, errs[0].Code)
}

func TestValidateUnknownLanguage(t *testing.T) {
	dep := validDeployment()
	dep.Tracepoints[0].Program.Language = "RUST"

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownLanguage, errs[0].Code)
	assert.Contains(t, errs[0].Field, "language")
}

func TestValidateDuplicateOutputName(t *testing.T) {
	dep := validDeployment()
	prog := &dep.Tracepoints[0].Program
	prog.Outputs = append(prog.Outputs, Output{Name: "probe_output", Fields: []string{"x"}})

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateOutputName, errs[0].Code)
}

func TestValidateOutputWithoutFields(t *testing.T) {
	dep := validDeployment()
	dep.Tracepoints[0].Program.Outputs[0].Fields = nil

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrOutputNoFields, errs[0].Code)
}

func TestValidateDuplicateProbeName(t *testing.T) {
	dep := validDeployment()
	prog := &dep.Tracepoints[0].Program
	dup := prog.Probes[0]
	dup.Args = []Capture{{ID: "other", Expr: "i2"}}
	prog.Probes = append(prog.Probes, dup)

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateProbeName, errs[0].Code)
}

func TestValidateMissingTracepointSymbol(t *testing.T) {
	dep := validDeployment()
	dep.Tracepoints[0].Program.Probes[0].Tracepoint.Symbol = ""

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrTracepointSymbolEmpty, errs[0].Code)
}

func TestValidateInvalidPlacement(t *testing.T) {
	dep := validDeployment()
	dep.Tracepoints[0].Program.Probes[0].Tracepoint.Type = "MIDDLE"

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidPlacement, errs[0].Code)
}

func TestValidateDuplicateCaptureIDAcrossKinds(t *testing.T) {
	// A latency id colliding with an arg id is a duplicate: output actions
	// reference variables by id and could not disambiguate the two.
	dep := validDeployment()
	dep.Tracepoints[0].Program.Probes[0].FunctionLatency = &LatencyCapture{ID: "arg0"}

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateCaptureID, errs[0].Code)
}

func TestValidateMalformedExpression(t *testing.T) {
	dep := validDeployment()
	dep.Tracepoints[0].Program.Probes[0].Args[0].Expr = "$oops"

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMalformedExpression, errs[0].Code)
}

func TestValidateEmptyOutputAction(t *testing.T) {
	dep := validDeployment()
	dep.Tracepoints[0].Program.Probes[0].OutputActions[0].VariableNames = nil

	errs := Validate(dep)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrOutputActionEmpty, errs[0].Code)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	dep := validDeployment()
	dep.DeploymentSpec.Path = ""
	dep.Tracepoints[0].Program.Language = "RUST"
	dep.Tracepoints[0].Program.Probes[0].Tracepoint.Symbol = ""

	errs := Validate(dep)
	assert.Len(t, errs, 3, "validation should collect all errors, not fail fast")
}

func TestVariableIDsOrder(t *testing.T) {
	probe := &Probe{
		Args:            []Capture{{ID: "a"}, {ID: "b"}},
		RetVals:         []Capture{{ID: "r"}},
		FunctionLatency: &LatencyCapture{ID: "lat"},
	}
	assert.Equal(t, []string{"a", "b", "r", "lat"}, probe.VariableIDs())
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "probes[0].name", Message: "probe name is required", Code: ErrProbeNameEmpty}
	assert.Equal(t, "[E120] probes[0].name: probe name is required", err.Error())
}

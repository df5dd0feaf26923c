package schema

import (
	"fmt"

	"github.com/probelab/tracept/internal/goruntime"
	"github.com/probelab/tracept/internal/ir"
	"github.com/probelab/tracept/internal/lower"
	"github.com/probelab/tracept/internal/physical"
	"github.com/probelab/tracept/internal/symbols"
)

// Schema error codes (E220-E229)
const (
	ErrUnknownOutputReference   = "E221" // action names an undeclared output
	ErrUnknownVariableReference = "E222" // action lists an uncaptured variable id
	ErrOutputArityMismatch      = "E223" // bound variables != declared fields
)

// Error is a structured schema-synthesis failure.
type Error struct {
	Code       string `json:"code"`
	OutputName string `json:"output_name,omitempty"`
	ProbeName  string `json:"probe_name,omitempty"`
	VariableID string `json:"variable_id,omitempty"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.ProbeName != "" && e.VariableID != "":
		return fmt.Sprintf("[%s] probe %q variable %q: %s", e.Code, e.ProbeName, e.VariableID, e.Message)
	case e.ProbeName != "":
		return fmt.Sprintf("[%s] probe %q: %s", e.Code, e.ProbeName, e.Message)
	default:
		return fmt.Sprintf("[%s] output %q: %s", e.Code, e.OutputName, e.Message)
	}
}

// boundField is one user field whose name is fixed by declaration order
// and whose type was fixed by the first variable bound to it.
type boundField struct {
	name string
	typ  ir.ScalarType
}

// outputState tracks one declared output while actions are applied.
type outputState struct {
	declared ir.Output
	bound    []boundField
	seen     map[string]bool // variable ids already bound to a field
}

// Synthesizer builds the perf-buffer record types for one program. Apply
// it to every lowered probe, then call PerfBuffers once.
type Synthesizer struct {
	runtime symbols.RuntimeTag
	outputs []*outputState
	byName  map[string]*outputState
}

// NewSynthesizer creates a synthesizer over the program's declared
// outputs. Declaration order is preserved in the emitted buffer list.
func NewSynthesizer(outputs []ir.Output, runtime symbols.RuntimeTag) *Synthesizer {
	s := &Synthesizer{
		runtime: runtime,
		byName:  make(map[string]*outputState, len(outputs)),
	}
	for _, out := range outputs {
		state := &outputState{declared: out, seen: make(map[string]bool)}
		s.outputs = append(s.outputs, state)
		s.byName[out.Name] = state
	}
	return s
}

// Apply registers a lowered probe's output actions. It is transactional:
// all actions are checked before any binding is committed, so a failed
// probe contributes nothing to any output schema. Returns every error
// found in the probe's actions.
func (s *Synthesizer) Apply(probe *lower.LoweredProbe) []error {
	var errs []error

	// Check pass. Track tentatively-bound ids per output so repeat
	// references stay no-ops and arity overflows within this probe are
	// caught before commit.
	tentative := make(map[string]map[string]bool, len(probe.OutputActions))
	for _, action := range probe.OutputActions {
		state, ok := s.byName[action.OutputName]
		if !ok {
			errs = append(errs, &Error{
				Code:       ErrUnknownOutputReference,
				OutputName: action.OutputName,
				ProbeName:  probe.ProbeName,
				Message:    fmt.Sprintf("output %q is not declared by the program", action.OutputName),
			})
			continue
		}
		ids := tentative[action.OutputName]
		if ids == nil {
			ids = make(map[string]bool)
			tentative[action.OutputName] = ids
		}
		for _, id := range action.VariableNames {
			if _, ok := probe.Capture(id); !ok {
				errs = append(errs, &Error{
					Code:       ErrUnknownVariableReference,
					OutputName: action.OutputName,
					ProbeName:  probe.ProbeName,
					VariableID: id,
					Message:    fmt.Sprintf("variable %q is not captured by probe %q", id, probe.ProbeName),
				})
				continue
			}
			if state.seen[id] || ids[id] {
				continue
			}
			ids[id] = true
		}
		if len(state.bound)+len(ids) > len(state.declared.Fields) {
			errs = append(errs, &Error{
				Code:       ErrOutputArityMismatch,
				OutputName: action.OutputName,
				ProbeName:  probe.ProbeName,
				Message: fmt.Sprintf("output %q declares %d fields but actions bind %d variables",
					action.OutputName, len(state.declared.Fields), len(state.bound)+len(ids)),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	// Commit pass. First reference of a variable binds the next declared
	// field name; the order is immutable once fixed.
	for _, action := range probe.OutputActions {
		state := s.byName[action.OutputName]
		for _, id := range action.VariableNames {
			if state.seen[id] {
				continue
			}
			state.seen[id] = true
			c, _ := probe.Capture(id)
			state.bound = append(state.bound, boundField{
				name: state.declared.Fields[len(state.bound)],
				typ:  c.Type,
			})
		}
	}
	return nil
}

// PerfBuffers emits one PerfBufferSpec per declared output, in
// declaration order. Every record starts with the runtime's mandatory
// correlation fields; user fields follow in first-reference order. An
// output whose declared fields were never all bound is an arity error.
func (s *Synthesizer) PerfBuffers() ([]physical.PerfBufferSpec, []error) {
	var specs []physical.PerfBufferSpec
	var errs []error

	for _, state := range s.outputs {
		if len(state.bound) != len(state.declared.Fields) {
			errs = append(errs, &Error{
				Code:       ErrOutputArityMismatch,
				OutputName: state.declared.Name,
				Message: fmt.Sprintf("output %q declares %d fields but only %d were bound by output actions",
					state.declared.Name, len(state.declared.Fields), len(state.bound)),
			})
			continue
		}

		fields := goruntime.MandatoryFields(s.runtime)
		for _, b := range state.bound {
			fields = append(fields, physical.Field{Name: b.name, Type: b.typ})
		}
		specs = append(specs, physical.PerfBufferSpec{
			Name: state.declared.Name,
			Output: physical.RecordType{
				Name:   state.declared.Name + "_value_t",
				Fields: fields,
			},
		})
	}
	return specs, errs
}

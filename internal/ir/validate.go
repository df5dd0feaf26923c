package ir

import (
	"fmt"
	"strings"
)

// Validation error codes (E100-E199)
const (
	// Deployment errors (E100-E109)
	ErrDeploymentPathEmpty = "E101" // deployment_spec.path is required
	ErrNoTracepoints       = "E102" // at least one tracepoint program required
	ErrUnknownLanguage     = "E103" // language tag not recognized

	// Output errors (E110-E119)
	ErrOutputNameEmpty     = "E110" // output name is required
	ErrDuplicateOutputName = "E111" // duplicate output name within a program
	ErrOutputNoFields      = "E112" // output must declare at least one field

	// Probe errors (E120-E139)
	ErrProbeNameEmpty        = "E120" // probe name is required
	ErrDuplicateProbeName    = "E121" // duplicate probe name within a program
	ErrTracepointSymbolEmpty = "E122" // tracepoint symbol is required
	ErrInvalidPlacement      = "E123" // placement kind not recognized
	ErrCaptureIDEmpty        = "E124" // capture id is required
	ErrDuplicateCaptureID    = "E125" // duplicate variable id within a probe
	ErrMalformedExpression   = "E126" // capture expression failed to parse
	ErrOutputActionEmpty     = "E127" // output action lists no variables
)

// ValidationError represents a structural error in a tracepoint deployment.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a deployment for structural errors before compilation.
// Returns all errors found (does not fail-fast). Referential checks that
// need resolver facts (expression slots, output schemas) happen during
// compilation, not here.
func Validate(dep *TracepointDeployment) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(dep.DeploymentSpec.Path) == "" {
		errs = append(errs, ValidationError{
			Field:   "deployment_spec.path",
			Message: "deployment path is required and must be non-empty",
			Code:    ErrDeploymentPathEmpty,
		})
	}

	if len(dep.Tracepoints) == 0 {
		errs = append(errs, ValidationError{
			Field:   "tracepoints",
			Message: "at least one tracepoint program is required",
			Code:    ErrNoTracepoints,
		})
	}

	for i := range dep.Tracepoints {
		errs = append(errs, validateProgram(i, &dep.Tracepoints[i].Program)...)
	}

	return errs
}

// validateProgram validates one tracepoint program.
func validateProgram(idx int, prog *Program) []ValidationError {
	var errs []ValidationError
	prefix := fmt.Sprintf("tracepoints[%d].program", idx)

	switch prog.Language {
	case LangGo, LangCPP:
	default:
		errs = append(errs, ValidationError{
			Field:   prefix + ".language",
			Message: fmt.Sprintf("unknown language tag %q", prog.Language),
			Code:    ErrUnknownLanguage,
		})
	}

	outputNames := make(map[string]bool)
	for i, out := range prog.Outputs {
		field := fmt.Sprintf("%s.outputs[%d]", prefix, i)
		if out.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "output name is required",
				Code:    ErrOutputNameEmpty,
			})
		}
		if outputNames[out.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate output name: %q", out.Name),
				Code:    ErrDuplicateOutputName,
			})
		}
		outputNames[out.Name] = true
		if len(out.Fields) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".fields",
				Message: fmt.Sprintf("output %q must declare at least one field", out.Name),
				Code:    ErrOutputNoFields,
			})
		}
	}

	probeNames := make(map[string]bool)
	for i := range prog.Probes {
		probe := &prog.Probes[i]
		field := fmt.Sprintf("%s.probes[%d]", prefix, i)
		if probe.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "probe name is required",
				Code:    ErrProbeNameEmpty,
			})
		}
		if probeNames[probe.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate probe name: %q", probe.Name),
				Code:    ErrDuplicateProbeName,
			})
		}
		probeNames[probe.Name] = true
		errs = append(errs, validateProbe(field, probe)...)
	}

	return errs
}

// validateProbe validates one probe's tracepoint, captures, and actions.
func validateProbe(field string, probe *Probe) []ValidationError {
	var errs []ValidationError

	if probe.Tracepoint.Symbol == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".tracepoint.symbol",
			Message: "tracepoint symbol is required",
			Code:    ErrTracepointSymbolEmpty,
		})
	}
	switch probe.Tracepoint.Type {
	case PlacementLogical, PlacementEntry, PlacementReturn:
	default:
		errs = append(errs, ValidationError{
			Field:   field + ".tracepoint.type",
			Message: fmt.Sprintf("unknown placement kind %q", probe.Tracepoint.Type),
			Code:    ErrInvalidPlacement,
		})
	}

	seen := make(map[string]bool)
	checkID := func(capField, id string) {
		if id == "" {
			errs = append(errs, ValidationError{
				Field:   capField + ".id",
				Message: "capture id is required",
				Code:    ErrCaptureIDEmpty,
			})
			return
		}
		if seen[id] {
			errs = append(errs, ValidationError{
				Field:   capField + ".id",
				Message: fmt.Sprintf("duplicate variable id: %q", id),
				Code:    ErrDuplicateCaptureID,
			})
		}
		seen[id] = true
	}
	checkExpr := func(capField, expr string) {
		if _, err := ParseExpr(expr); err != nil {
			errs = append(errs, ValidationError{
				Field:   capField + ".expr",
				Message: err.Error(),
				Code:    ErrMalformedExpression,
			})
		}
	}

	for i, arg := range probe.Args {
		capField := fmt.Sprintf("%s.args[%d]", field, i)
		checkID(capField, arg.ID)
		checkExpr(capField, arg.Expr)
	}
	for i, rv := range probe.RetVals {
		capField := fmt.Sprintf("%s.ret_vals[%d]", field, i)
		checkID(capField, rv.ID)
		checkExpr(capField, rv.Expr)
	}
	if probe.FunctionLatency != nil {
		checkID(field+".function_latency", probe.FunctionLatency.ID)
	}

	for i, action := range probe.OutputActions {
		if len(action.VariableNames) == 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.output_actions[%d]", field, i),
				Message: fmt.Sprintf("output action on %q lists no variables", action.OutputName),
				Code:    ErrOutputActionEmpty,
			})
		}
	}

	return errs
}

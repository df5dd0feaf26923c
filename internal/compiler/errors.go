package compiler

import (
	"fmt"
	"strings"
)

// ProgramError attributes a pipeline error to the tracepoint program it
// arose in.
type ProgramError struct {
	Program int // index into the deployment's tracepoints
	Err     error
}

// Error implements the error interface.
func (e *ProgramError) Error() string {
	return fmt.Sprintf("tracepoints[%d]: %v", e.Program, e.Err)
}

// Unwrap exposes the stage error for errors.As against lower/schema types.
func (e *ProgramError) Unwrap() error { return e.Err }

// CompileErrors aggregates every error a compile produced. In fail-fast
// mode it holds exactly one entry; in best-effort mode it holds one entry
// per failed probe or output.
type CompileErrors []error

// Error implements the error interface.
func (e CompileErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d compile errors: %s", len(e), strings.Join(msgs, "; "))
}

// Unwrap supports errors.Is/As across all aggregated errors.
func (e CompileErrors) Unwrap() []error { return e }

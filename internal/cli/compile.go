package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/probelab/tracept/internal/compiler"
	"github.com/probelab/tracept/internal/ir"
	"github.com/probelab/tracept/internal/lower"
	"github.com/probelab/tracept/internal/physical"
	"github.com/probelab/tracept/internal/schema"
	"github.com/probelab/tracept/internal/store"
	"github.com/probelab/tracept/internal/symbols"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Facts      string // symbol fact table path
	Output     string // artifact output file path
	Database   string // compilation store path
	BestEffort bool
}

// CompileResult holds the compiled artifact and its identity hashes.
type CompileResult struct {
	SpecHash        string            `json:"spec_hash"`
	ArtifactHash    string            `json:"artifact_hash"`
	UProbeCount     int               `json:"uprobe_count"`
	PerfBufferCount int               `json:"perf_buffer_count"`
	CompilationID   string            `json:"compilation_id,omitempty"`
	Artifact        *physical.Program `json:"artifact"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <deployment.yaml>",
		Short: "Compile a deployment to a physical artifact",
		Long: `Compile a tracepoint deployment into its physical artifact.

The compiler validates the deployment, resolves symbols against the fact
table, lowers every probe to uprobe specs, and synthesizes one perf
buffer per declared output. The artifact is canonical JSON: compiling
the same deployment against the same facts always yields the same bytes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Facts, "facts", "", "symbol fact table (required)")
	_ = cmd.MarkFlagRequired("facts")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the artifact to a file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the compilation in a SQLite store")
	cmd.Flags().BoolVar(&opts.BestEffort, "best-effort", false, "compile what resolves, report the rest")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dep, err := LoadDeployment(path)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	resolver, err := symbols.LoadFacts(opts.Facts)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFailed, fmt.Sprintf("loading fact table: %v", err), nil)
		return WrapExitError(ExitCommandError, "loading fact table", err)
	}

	formatter.VerboseLog("Compiling deployment for %s (%d tracepoint program(s))",
		dep.DeploymentSpec.Path, len(dep.Tracepoints))

	mode := compiler.ModeFailFast
	if opts.BestEffort {
		mode = compiler.ModeBestEffort
	}

	program, compileErr := compiler.Compile(dep, resolver, compiler.Options{Mode: mode})
	if compileErr != nil && program == nil {
		return outputCompileErrors(formatter, nil, compileErr)
	}

	specDoc, err := json.Marshal(dep)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("marshaling deployment: %v", err), nil)
		return WrapExitError(ExitCommandError, "marshaling deployment", err)
	}
	artifact, err := physical.MarshalCanonical(program)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("marshaling artifact: %v", err), nil)
		return WrapExitError(ExitCommandError, "marshaling artifact", err)
	}
	artifactHash, err := physical.ArtifactHash(program)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("hashing artifact: %v", err), nil)
		return WrapExitError(ExitCommandError, "hashing artifact", err)
	}

	result := &CompileResult{
		SpecHash:        physical.SpecHash(specDoc),
		ArtifactHash:    artifactHash,
		UProbeCount:     len(program.UProbes),
		PerfBufferCount: len(program.PerfBuffers),
		Artifact:        program,
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, artifact, 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing artifact: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing artifact", err)
		}
	}

	if opts.Database != "" {
		comp, err := saveCompilation(opts.Database, result.SpecHash, program)
		if err != nil {
			_ = formatter.Error(ErrCodeStoreFailed, fmt.Sprintf("recording compilation: %v", err), nil)
			return WrapExitError(ExitCommandError, "recording compilation", err)
		}
		result.CompilationID = comp.ID
	}

	if compileErr != nil {
		// Best-effort with failures: emit the partial artifact alongside
		// the errors and exit nonzero.
		if formatter.Format != "json" {
			if err := outputCompileSuccess(formatter, result, opts.Output); err != nil {
				return err
			}
			return outputCompileErrors(formatter, nil, compileErr)
		}
		return outputCompileErrors(formatter, result, compileErr)
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// saveCompilation records the artifact in the store, keyed by spec hash.
func saveCompilation(dbPath, specHash string, program *physical.Program) (*store.Compilation, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return st.SaveCompilation(context.Background(), specHash, program)
}

// outputCompileSuccess outputs the compiled artifact summary.
func outputCompileSuccess(formatter *OutputFormatter, result *CompileResult, outputFile string) error {
	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d uprobe(s), %d perf buffer(s)\n\n",
		result.UProbeCount, result.PerfBufferCount)

	if len(result.Artifact.UProbes) > 0 {
		fmt.Fprintln(formatter.Writer, "UProbes:")
		for _, spec := range result.Artifact.UProbes {
			fmt.Fprintf(formatter.Writer, "  %-6s %s @ %#x -> %s\n",
				spec.AttachKind, spec.Symbol, spec.Address, spec.ProbeFnName)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if len(result.Artifact.PerfBuffers) > 0 {
		fmt.Fprintln(formatter.Writer, "Perf buffers:")
		for _, buf := range result.Artifact.PerfBuffers {
			fmt.Fprintf(formatter.Writer, "  %s: %s (%d field(s))\n",
				buf.Name, buf.Output.Name, len(buf.Output.Fields))
		}
		fmt.Fprintln(formatter.Writer)
	}

	fmt.Fprintf(formatter.Writer, "Spec hash:     %s\n", result.SpecHash)
	fmt.Fprintf(formatter.Writer, "Artifact hash: %s\n", result.ArtifactHash)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote artifact to %s\n", outputFile)
	}
	if result.CompilationID != "" {
		fmt.Fprintf(formatter.Writer, "Recorded compilation %s\n", result.CompilationID)
	}

	return nil
}

// outputCommandError reports a load failure and maps it to exit code 2.
func outputCommandError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, loadErr.Error())
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return NewExitError(ExitCommandError, err.Error())
}

// outputCompileErrors outputs the errors a compile produced. In JSON mode
// a non-nil partial result rides along in the response data so best-effort
// callers get the artifact and the failures in one document.
func outputCompileErrors(formatter *OutputFormatter, partial *CompileResult, err error) error {
	var errs compiler.CompileErrors
	if !errors.As(err, &errs) {
		errs = compiler.CompileErrors{err}
	}

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, e := range errs {
			code, message := compileErrorCode(e)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		var data interface{} = cliErrors
		if partial != nil {
			data = struct {
				*CompileResult
				Errors []CLIError `json:"errors"`
			}{partial, cliErrors}
		}
		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   data,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if encErr := encoder.Encode(response); encErr != nil {
			return encErr
		}
		return NewExitError(ExitFailure, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, e := range errs {
		code, message := compileErrorCode(e)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", code, message)
	}
	fmt.Fprintln(formatter.Writer)

	return NewExitError(ExitFailure, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// compileErrorCode extracts the error code and message from a pipeline
// error, unwrapping program attribution along the way.
func compileErrorCode(err error) (string, string) {
	var verr ir.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, fmt.Sprintf("%s: %s", verr.Field, verr.Message)
	}
	var lerr *lower.Error
	if errors.As(err, &lerr) {
		return lerr.Code, err.Error()
	}
	var serr *schema.Error
	if errors.As(err, &serr) {
		return serr.Code, err.Error()
	}
	return ErrCodeGeneric, err.Error()
}

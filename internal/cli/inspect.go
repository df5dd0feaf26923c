package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/probelab/tracept/internal/physical"
	"github.com/probelab/tracept/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database string
	SpecHash string // optional - show one compilation in full
}

// CompilationSummary is one stored compilation without the artifact body.
type CompilationSummary struct {
	ID           string `json:"id"`
	SpecHash     string `json:"spec_hash"`
	ArtifactHash string `json:"artifact_hash"`
	CreatedAt    int64  `json:"created_at"`
}

// InspectResult holds the inspect output: either a listing or one full
// compilation.
type InspectResult struct {
	Compilations []CompilationSummary `json:"compilations,omitempty"`
	Artifact     *physical.Program    `json:"artifact,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect stored compilations",
		Long: `Inspect the compilation store.

Lists stored compilations, oldest first. With --spec-hash, prints the
full artifact recorded for that spec document.

Examples:
  tracept inspect --db ./tracept.db
  tracept inspect --db ./tracept.db --spec-hash 4ac1... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite compilation store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SpecHash, "spec-hash", "", "show the artifact for one spec document hash")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, fmt.Sprintf("opening store: %v", err), nil)
		return WrapExitError(ExitCommandError, "opening store", err)
	}
	defer st.Close()

	ctx := context.Background()

	if opts.SpecHash != "" {
		return inspectOne(ctx, formatter, st, opts.SpecHash)
	}
	return inspectList(ctx, formatter, st)
}

func inspectOne(ctx context.Context, formatter *OutputFormatter, st *store.Store, specHash string) error {
	comp, err := st.GetCompilation(ctx, specHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no compilation for spec %s", specHash), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("no compilation for spec %s", specHash))
		}
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading compilation", err)
	}

	var program physical.Program
	if err := json.Unmarshal(comp.Artifact, &program); err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, fmt.Sprintf("decoding stored artifact: %v", err), nil)
		return WrapExitError(ExitCommandError, "decoding stored artifact", err)
	}

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: InspectResult{
			Compilations: []CompilationSummary{summarize(comp)},
			Artifact:     &program,
		}})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Compilation %s\n", comp.ID)
	fmt.Fprintf(w, "  Spec hash:     %s\n", comp.SpecHash)
	fmt.Fprintf(w, "  Artifact hash: %s\n", comp.ArtifactHash)
	fmt.Fprintf(w, "  Created:       %s\n", time.Unix(comp.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "UProbes:")
	for _, spec := range program.UProbes {
		fmt.Fprintf(w, "  %-6s %s @ %#x -> %s\n",
			spec.AttachKind, spec.Symbol, spec.Address, spec.ProbeFnName)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Perf buffers:")
	for _, buf := range program.PerfBuffers {
		fmt.Fprintf(w, "  %s: %s\n", buf.Name, buf.Output.Name)
		for _, f := range buf.Output.Fields {
			fmt.Fprintf(w, "    %-20s %s\n", f.Name, f.Type)
		}
	}

	return nil
}

func inspectList(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	comps, err := st.ListCompilations(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "listing compilations", err)
	}

	summaries := make([]CompilationSummary, len(comps))
	for i := range comps {
		summaries[i] = summarize(&comps[i])
	}

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: InspectResult{Compilations: summaries}})
	}

	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No compilations stored")
		return nil
	}

	fmt.Fprintf(formatter.Writer, "%d compilation(s)\n\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(formatter.Writer, "  %s\n", s.ID)
		fmt.Fprintf(formatter.Writer, "    spec %s  artifact %s  %s\n",
			shortHash(s.SpecHash), shortHash(s.ArtifactHash),
			time.Unix(s.CreatedAt, 0).UTC().Format(time.RFC3339))
	}

	return nil
}

func summarize(c *store.Compilation) CompilationSummary {
	return CompilationSummary{
		ID:           c.ID,
		SpecHash:     c.SpecHash,
		ArtifactHash: c.ArtifactHash,
		CreatedAt:    c.CreatedAt,
	}
}

// shortHash truncates a hex hash for display.
func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}

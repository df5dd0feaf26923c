package cli

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/probelab/tracept/internal/ir"
)

//go:embed deployment.cue
var deploymentSchema []byte

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // File read error
	ErrCodeParseFailed = "E003" // YAML parse error
	ErrCodeSchema      = "E004" // Deployment schema violation
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStoreFailed = "E008" // Compilation store error
)

// LoadError represents an error that occurred while loading a deployment
// or fact table from disk.
type LoadError struct {
	Code    string
	Message string
	File    string
	Line    int // 0 when no position is available
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDeployment reads a tracepoint deployment from a YAML file, checks
// its shape against the embedded deployment schema, and decodes it.
// Schema violations carry the offending file position when the evaluator
// reports one.
func LoadDeployment(path string) (*ir.TracepointDeployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("deployment file not found: %s", path), File: path}
		}
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading deployment file: %v", err), File: path}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(deploymentSchema, cue.Filename("deployment.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("compiling deployment schema: %v", err), File: path}
	}
	def := schema.LookupPath(cue.ParsePath("#Deployment"))

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("parsing YAML: %v", err), File: path, Line: firstLine(err)}
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("building deployment document: %v", err), File: path, Line: firstLine(err)}
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error(), File: path, Line: firstLine(err)}
	}

	var dep ir.TracepointDeployment
	if err := yaml.Unmarshal(data, &dep); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("decoding deployment: %v", err), File: path}
	}
	return &dep, nil
}

// firstLine extracts the first reported source line from a CUE error.
func firstLine(err error) int {
	for _, pos := range cueerrors.Positions(cueerrors.Promote(err, "")) {
		if pos.IsValid() && pos.Line() > 0 {
			return pos.Line()
		}
	}
	return 0
}

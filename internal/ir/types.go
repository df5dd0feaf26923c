package ir

// TracepointDeployment is the top-level tracing request: a deployment
// target plus the tracepoint programs to instrument it with.
type TracepointDeployment struct {
	DeploymentSpec DeploymentSpec      `json:"deployment_spec" yaml:"deployment_spec"`
	Tracepoints    []TracepointProgram `json:"tracepoints" yaml:"tracepoints"`
}

// DeploymentSpec selects the traced target. Path is the object file to
// attach to; process selection (by PID or pod) resolves to a path before
// the deployment reaches the compiler.
type DeploymentSpec struct {
	Path string `json:"path" yaml:"path"`
}

// TracepointProgram wraps one Program. The extra nesting level matches the
// deployment transport, which reserves sibling fields (table name, TTL)
// owned by the surrounding tooling.
type TracepointProgram struct {
	Program Program `json:"program" yaml:"program"`
}

// Language tags the source runtime of the traced binary.
type Language string

const (
	// LangGo marks a binary with a cooperative goroutine scheduler.
	// Programs in this language get logical-execution-unit correlation.
	LangGo Language = "GOLANG"
	// LangCPP marks a native binary with no scheduler runtime.
	LangCPP Language = "CPP"
)

// Program owns the outputs and probes for one traced binary.
type Program struct {
	Language Language `json:"language" yaml:"language"`
	Outputs  []Output `json:"outputs" yaml:"outputs"`
	Probes   []Probe  `json:"probes" yaml:"probes"`
}

// Output declares a named output record and the ordered names of its
// user fields. Field types are inferred during compilation from the
// captures bound to each field.
type Output struct {
	Name   string   `json:"name" yaml:"name"`
	Fields []string `json:"fields" yaml:"fields"`
}

// PlacementKind selects where a probe attaches relative to its symbol.
type PlacementKind string

const (
	// PlacementLogical captures at entry and return as one logical unit.
	PlacementLogical PlacementKind = "LOGICAL"
	// PlacementEntry attaches at the function entry point only.
	PlacementEntry PlacementKind = "ENTRY"
	// PlacementReturn attaches at the function return point(s) only.
	PlacementReturn PlacementKind = "RETURN"
)

// TracepointSpec names the target symbol and the placement kind.
type TracepointSpec struct {
	Symbol string        `json:"symbol" yaml:"symbol"`
	Type   PlacementKind `json:"type" yaml:"type"`
}

// Capture declares one value to read at a probe site: a user-chosen
// variable id and the expression locating the value.
type Capture struct {
	ID   string `json:"id" yaml:"id"`
	Expr string `json:"expr" yaml:"expr"`
}

// LatencyCapture requests function latency. The value is computed from
// entry/return timestamps, so there is no expression to evaluate.
type LatencyCapture struct {
	ID string `json:"id" yaml:"id"`
}

// OutputAction appends captured variables, in the listed order, as the
// user-field values of one record written to the named output.
type OutputAction struct {
	OutputName    string   `json:"output_name" yaml:"output_name"`
	VariableNames []string `json:"variable_name" yaml:"variable_name"`
}

// Probe is one user-declared instrumentation point.
type Probe struct {
	Name            string          `json:"name" yaml:"name"`
	Tracepoint      TracepointSpec  `json:"tracepoint" yaml:"tracepoint"`
	Args            []Capture       `json:"args,omitempty" yaml:"args,omitempty"`
	RetVals         []Capture       `json:"ret_vals,omitempty" yaml:"ret_vals,omitempty"`
	FunctionLatency *LatencyCapture `json:"function_latency,omitempty" yaml:"function_latency,omitempty"`
	OutputActions   []OutputAction  `json:"output_actions,omitempty" yaml:"output_actions,omitempty"`
}

// CaptureKind distinguishes the three capture sources a probe declares.
// The set is closed; the schema synthesizer switches exhaustively over it.
type CaptureKind int

const (
	// KindArg is a function argument read at entry.
	KindArg CaptureKind = iota
	// KindRetVal is a return value read at return.
	KindRetVal
	// KindLatency is the computed entry-to-return duration.
	KindLatency
)

// String returns the capture kind's display name.
func (k CaptureKind) String() string {
	switch k {
	case KindArg:
		return "arg"
	case KindRetVal:
		return "ret_val"
	case KindLatency:
		return "function_latency"
	default:
		return "unknown"
	}
}

// VariableIDs returns every variable id the probe declares, in declaration
// order: args, then ret_vals, then the latency capture.
func (p *Probe) VariableIDs() []string {
	ids := make([]string, 0, len(p.Args)+len(p.RetVals)+1)
	for _, a := range p.Args {
		ids = append(ids, a.ID)
	}
	for _, r := range p.RetVals {
		ids = append(ids, r.ID)
	}
	if p.FunctionLatency != nil {
		ids = append(ids, p.FunctionLatency.ID)
	}
	return ids
}

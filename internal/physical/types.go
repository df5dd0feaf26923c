package physical

import (
	"github.com/probelab/tracept/internal/ir"
)

// AttachKind selects how a uprobe binds to its address.
type AttachKind string

const (
	// AttachEntry fires when execution reaches the address.
	AttachEntry AttachKind = "ENTRY"
	// AttachReturn fires at a return site. Return placements attach at
	// explicit RET addresses, never via uretprobe trampolines.
	AttachReturn AttachKind = "RETURN"
)

// UProbeSpec is one concrete probe attachment: a symbol and resolved
// address in a binary, plus the generated probe function the loader binds
// there. Several return-site specs lowered from one logical placement
// share a probe function name; the loader binds the function once and
// attaches it at each address.
type UProbeSpec struct {
	BinaryPath  string     `json:"binary_path"`
	Symbol      string     `json:"symbol"`
	AttachKind  AttachKind `json:"attach_kind"`
	Address     uint64     `json:"address"`
	ProbeFnName string     `json:"probe_fn_name"`
}

// Field is one column of an output record.
type Field struct {
	Name string        `json:"name"`
	Type ir.ScalarType `json:"type"`
}

// RecordType is the generated record shape for one output.
type RecordType struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// PerfBufferSpec names one kernel-to-user ring buffer and the record type
// written to it. The buffer name equals the declared output name.
type PerfBufferSpec struct {
	Name   string     `json:"name"`
	Output RecordType `json:"output"`
}

// Program is the complete physical artifact for one deployment: user
// probes in declaration order (entry before return within a logical
// probe), then auxiliary runtime-correlation probes, then one perf buffer
// per declared output in declaration order.
type Program struct {
	UProbes     []UProbeSpec     `json:"uprobe_specs"`
	PerfBuffers []PerfBufferSpec `json:"perf_buffer_specs"`
}

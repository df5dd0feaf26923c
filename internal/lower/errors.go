package lower

import (
	"fmt"
)

// Lowering error codes (E210-E219)
const (
	ErrSymbolNotFound          = "E210" // resolver found no such symbol
	ErrUnsupportedBinaryFormat = "E211" // resolver could not parse the binary
	ErrUnresolvedExpression    = "E212" // expression maps to no known slot
	ErrPlacementMismatch       = "E213" // capture kind impossible at placement
	ErrDuplicateProbeFunction  = "E214" // generated handler name collision
	ErrNoReturnSites           = "E215" // return placement but no RET addresses
)

// Error is a structured lowering failure carrying the offending probe's
// identity. CaptureID is set for expression failures, empty for
// placement-level ones.
type Error struct {
	Code      string `json:"code"`
	ProbeName string `json:"probe_name"`
	Symbol    string `json:"symbol,omitempty"`
	CaptureID string `json:"capture_id,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.CaptureID != "" {
		return fmt.Sprintf("[%s] probe %q capture %q: %s", e.Code, e.ProbeName, e.CaptureID, e.Message)
	}
	return fmt.Sprintf("[%s] probe %q: %s", e.Code, e.ProbeName, e.Message)
}

// Unwrap exposes the underlying resolver error, if any.
func (e *Error) Unwrap() error { return e.Err }

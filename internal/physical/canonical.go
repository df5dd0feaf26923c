package physical

import (
	"bytes"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for a physical program.
// CRITICAL: this is the only serialization used for artifact hashing and
// golden comparison, so it must stay byte-stable:
//   - Object keys emitted in sorted order
//   - Strings NFC normalized, no HTML escaping (< > & stay literal)
//   - Only quote, backslash, and control characters are escaped
//   - Nil and empty slices both serialize as []
func MarshalCanonical(p *Program) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil program")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKey(&buf, "perf_buffer_specs", true)
	writeArray(&buf, len(p.PerfBuffers), func(i int) {
		writePerfBuffer(&buf, &p.PerfBuffers[i])
	})
	writeKey(&buf, "uprobe_specs", false)
	writeArray(&buf, len(p.UProbes), func(i int) {
		writeUProbe(&buf, &p.UProbes[i])
	})
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeUProbe(buf *bytes.Buffer, s *UProbeSpec) {
	buf.WriteByte('{')
	writeKey(buf, "address", true)
	fmt.Fprintf(buf, "%d", s.Address)
	writeKey(buf, "attach_kind", false)
	writeString(buf, string(s.AttachKind))
	writeKey(buf, "binary_path", false)
	writeString(buf, s.BinaryPath)
	writeKey(buf, "probe_fn_name", false)
	writeString(buf, s.ProbeFnName)
	writeKey(buf, "symbol", false)
	writeString(buf, s.Symbol)
	buf.WriteByte('}')
}

func writePerfBuffer(buf *bytes.Buffer, s *PerfBufferSpec) {
	buf.WriteByte('{')
	writeKey(buf, "name", true)
	writeString(buf, s.Name)
	writeKey(buf, "output", false)
	buf.WriteByte('{')
	writeKey(buf, "fields", true)
	writeArray(buf, len(s.Output.Fields), func(i int) {
		f := s.Output.Fields[i]
		buf.WriteByte('{')
		writeKey(buf, "name", true)
		writeString(buf, f.Name)
		writeKey(buf, "type", false)
		writeString(buf, string(f.Type))
		buf.WriteByte('}')
	})
	writeKey(buf, "name", false)
	writeString(buf, s.Output.Name)
	buf.WriteByte('}')
	buf.WriteByte('}')
}

// writeKey emits a comma separator (unless first), the quoted key, and a
// colon. Keys are package-controlled ASCII, so no escaping is needed.
func writeKey(buf *bytes.Buffer, key string, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	buf.WriteByte('"')
	buf.WriteString(key)
	buf.WriteString(`":`)
}

func writeArray(buf *bytes.Buffer, n int, elem func(i int)) {
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		elem(i)
	}
	buf.WriteByte(']')
}

// writeString emits a canonical JSON string: NFC normalized, escaping only
// quote, backslash, and control characters. HTML characters and U+2028 /
// U+2029 stay literal, unlike encoding/json's defaults.
func writeString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

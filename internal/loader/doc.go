// Package loader turns a compiled physical program into kernel
// attachments. It consumes a pre-built eBPF collection whose program
// names match the artifact's generated probe function names; it performs
// no code generation itself.
//
// Planning (grouping and validating the attach work) is pure and runs
// anywhere; the attachment path is Linux-only.
package loader

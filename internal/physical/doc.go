// Package physical defines the compiled artifact handed to the kernel
// probe loader: the ordered uprobe placements and perf-buffer record
// schemas produced for one tracepoint deployment.
//
// Artifacts serialize to canonical JSON (sorted keys, NFC-normalized
// strings, no floats) so that identical compilations are byte-identical
// and can be content-addressed.
package physical

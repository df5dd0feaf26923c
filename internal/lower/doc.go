// Package lower expands logical probes into physical uprobe placements.
//
// A logical probe names a function and what to capture there; lowering
// turns that into concrete attach points (entry address, each return
// site) with generated handler names, and resolves every capture
// expression against the symbol's argument locations. All referential
// failures are compile-time errors attributed to the offending probe and
// capture.
package lower

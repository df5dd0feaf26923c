// Package schema synthesizes the output record types written to perf
// buffers. For each declared output it fixes the field list: the
// mandatory correlation prefix first, then user fields in the order their
// variables were first referenced, each typed from its resolved capture.
// Synthesis is idempotent: identical inputs yield byte-identical field
// lists.
package schema

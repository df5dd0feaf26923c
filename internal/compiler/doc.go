// Package compiler drives the compilation pipeline: structural
// validation, per-probe lowering, auxiliary correlation planning, output
// schema synthesis, and final assembly of the physical program artifact.
//
// Compilation is a pure function of the deployment plus resolver facts.
// Each invocation builds fresh pipeline state and discards it; nothing is
// shared across compiles, so independent deployments may be compiled
// concurrently by independent calls.
package compiler

// Package store provides SQLite-backed storage for compiled artifacts.
//
// Each row pairs the content hash of a logical spec document with the
// canonical JSON of the physical program compiled from it. The unique
// index on spec_hash makes re-compiles idempotent: compiling the same
// spec against the same facts stores nothing new, and deployment tooling
// can look artifacts up by spec identity.
package store

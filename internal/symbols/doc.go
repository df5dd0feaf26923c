// Package symbols defines the symbol-resolution contract the compiler
// consumes. The production resolver reads ELF/DWARF from the traced binary
// and lives outside this module; the compiler only sees the Resolver
// interface and the facts it reports. StaticResolver is a deterministic
// in-memory implementation used by tests and offline compilation.
package symbols

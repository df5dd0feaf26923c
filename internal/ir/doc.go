// Package ir provides the logical tracepoint model for tracept.
//
// This package contains type definitions, the argument-expression grammar,
// and structural validation only. All other internal packages import ir;
// ir imports nothing internal. This ensures the logical model remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Field names and nesting mirror the deployment transport exactly
//     (snake_case tags), so specs round-trip through existing tooling.
//   - Argument expressions are parsed once here, into a closed variant
//     (NamedArg, ReturnSlot); downstream stages never re-parse strings.
//   - Ordering is always the declared slice order, never map iteration.
package ir

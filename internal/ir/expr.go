package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a parsed capture expression.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the lowering engine.
//
// Expr types:
//   - NamedArg: a plain identifier naming a function argument ("i1")
//   - ReturnSlot: a $N reference to the Nth return slot ("$6")
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// NamedArg references a function argument by its declared name.
type NamedArg struct {
	Name string
}

// ReturnSlot references the Nth return slot of the traced function.
// Slot indices count individual machine slots, not language-level return
// values, so a multi-word return occupies several consecutive slots.
type ReturnSlot struct {
	Index int
}

func (NamedArg) exprNode()   {}
func (ReturnSlot) exprNode() {}

// String renders the expression back in its source form.
func (e NamedArg) String() string { return e.Name }

// String renders the expression back in its source form.
func (e ReturnSlot) String() string { return "$" + strconv.Itoa(e.Index) }

// ParseExpr parses a capture expression string into its closed variant.
// The grammar is intentionally small: a plain identifier is a NamedArg; a
// dollar sign followed by a non-negative integer is a ReturnSlot. Anything
// else is an error.
func ParseExpr(s string) (Expr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if rest, ok := strings.CutPrefix(s, "$"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid return slot reference %q: %v", s, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative return slot reference %q", s)
		}
		return ReturnSlot{Index: n}, nil
	}
	if !isIdentifier(s) {
		return nil, fmt.Errorf("invalid argument expression %q", s)
	}
	return NamedArg{Name: s}, nil
}

// isIdentifier reports whether s is a plain argument identifier.
func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Package datalimits implements the trusted-data limiter of this module:
// a stateful complexity token that bounds the depth and cardinality of
// any guest-produced structure before it is materialized as a host
// value, plus identifier/auxiliary-string length checks.
package datalimits

import "github.com/pkg/errors"

// Limits is the configured budget for identifier length, auxiliary
// string length, structure depth, and structure complexity.
type Limits struct {
	MaxIdentifierLength int
	MaxAuxStringLength  int
	MaxDepth            int
	MaxComplexity       int
}

// ExhaustedError is the ResourcesExhausted error of this module
// with one of the four reasons the limiter can reject a conversion.
type ExhaustedError struct {
	Tag   string // "data structure depth" | "data structure complexity" | "identifier length" | "auxiliary string length"
	Limit int
}

func (e *ExhaustedError) Error() string {
	return errors.Errorf("resources exhausted: %s: limit=%d", e.Tag, e.Limit).Error()
}

// complexity is shared by every token descending from the same root;
// depth is local to each branch of the call chain.
type complexity struct {
	limits Limits
	count  int
}

// Token is the complexity token: created once at the root of a
// guest→host conversion and threaded through every recursive step;
// Sub derives a child that tracks one more level of depth.
type Token struct {
	shared *complexity
	depth  int
}

// Root creates the token at the start of a conversion, with the
// supplied budget.
func Root(lim Limits) *Token {
	return &Token{shared: &complexity{limits: lim}}
}

// Sub constructs a child token for one recursive step: depth increases
// by one (failing if it would reach MaxDepth) and the shared
// complexity counter increases by one (failing if it would reach
// MaxComplexity). Complexity is shared across all children under the
// same root; depth is not.
func (t *Token) Sub() (*Token, error) {
	if t.shared.limits.MaxDepth > 0 && t.depth+1 >= t.shared.limits.MaxDepth {
		return nil, &ExhaustedError{Tag: "data structure depth", Limit: t.shared.limits.MaxDepth}
	}
	t.shared.count++
	if t.shared.limits.MaxComplexity > 0 && t.shared.count >= t.shared.limits.MaxComplexity {
		return nil, &ExhaustedError{Tag: "data structure complexity", Limit: t.shared.limits.MaxComplexity}
	}
	return &Token{shared: t.shared, depth: t.depth + 1}, nil
}

// NoRecursion documents that a terminal (leaf) kind consumes its token
// without spawning children: primitive Arrow types, time/interval unit
// enums, the union-mode enum, and the volatility enum. It
// is a no-op; its only purpose is to make terminal conversions explicit
// at call sites instead of silently dropping the token.
func (t *Token) NoRecursion() {}

// CheckIdentifier fails if s is longer than MaxIdentifierLength. Used
// for field names and other guest-chosen identifiers.
func (t *Token) CheckIdentifier(s string) error {
	lim := t.shared.limits.MaxIdentifierLength
	if lim > 0 && len(s) > lim {
		return &ExhaustedError{Tag: "identifier length", Limit: lim}
	}
	return nil
}

// CheckAuxString fails if s is longer than MaxAuxStringLength. Used for
// error messages, metadata values, and other free-form guest strings
// that are not identifiers.
func (t *Token) CheckAuxString(s string) error {
	lim := t.shared.limits.MaxAuxStringLength
	if lim > 0 && len(s) > lim {
		return &ExhaustedError{Tag: "auxiliary string length", Limit: lim}
	}
	return nil
}

// Depth reports the current branch's depth, for diagnostics.
func (t *Token) Depth() int { return t.depth }

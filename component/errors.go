// Package component implements the precompiled component store and
// the component instance lifecycle: compiling and rehydrating guest
// WebAssembly bytecode, the epoch-tick preemption task, and the
// store-mutex that serializes all guest entry.
package component

import "fmt"

// Kind enumerates the taxonomy of errors this package itself produces
// (the remainder — Plan, Execution, NotImplemented — are produced by
// udfadapter and ingress, which wrap these).
type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindResourcesExhausted
	KindTrap
)

// Error is a structured component-lifecycle error: a Kind, a message,
// and an optional cause, using github.com/pkg/errors-style wrapping
// rather than a bare string.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ErrCannotEnter is the fixed diagnostic returned by every call into a
// poisoned instance.
var ErrCannotEnter = &Error{Kind: KindTrap, Message: "cannot enter component instance"}

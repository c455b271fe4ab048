// Package udfadapter implements the scalar-UDF adapter of this module:
// it exposes a precompiled guest component as one or more
// engine-visible async scalar functions, routing each invocation
// through a component.Instance under its store-mutex.
package udfadapter

import "github.com/apache/arrow/go/arrow"

// Volatility mirrors the engine-visible function-volatility
// vocabulary (the Signature).
type Volatility int

const (
	Immutable Volatility = iota
	Stable
	Volatile
)

// TypeSignatureKind enumerates the `type_signature` variants.
type TypeSignatureKind int

const (
	SigVariadic TypeSignatureKind = iota
	SigUserDefined
	SigVariadicAny
	SigUniform // n, types: exactly n args, each one of types
	SigExact   // types: exact positional type list
	SigComparable
	SigAny // n args, any types
	SigNumeric
	SigString
	SigNullary
	SigArraySignature
)

// TypeSignature is the tagged `type_signature` union.
type TypeSignature struct {
	Kind  TypeSignatureKind
	N     int
	Types []arrow.DataType
}

// Signature is the Signature wire type.
type Signature struct {
	TypeSignature   TypeSignature
	Volatility      Volatility
	ParameterNames  []string // nil when the guest did not supply names
}

package ingress

import (
	"testing"

	"github.com/apache/arrow/go/arrow"
	"github.com/stretchr/testify/require"

	"github.com/wasmudf/sandbox-host/datalimits"
)

func TestCheckedDataTypeTerminalPrimitive(t *testing.T) {
	lim := Root(datalimits.Limits{MaxDepth: 16, MaxComplexity: 16, MaxIdentifierLength: 64, MaxAuxStringLength: 64})
	require.NoError(t, CheckedDataType(arrow.PrimitiveTypes.Int64, lim))
}

func TestCheckedFieldChecksIdentifierLength(t *testing.T) {
	lim := Root(datalimits.Limits{MaxDepth: 16, MaxComplexity: 16, MaxIdentifierLength: 4})
	f := arrow.Field{Name: "too_long_a_name", Type: arrow.PrimitiveTypes.Int64}
	err := CheckedField(f, lim)
	require.Error(t, err)
	ie, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, KindResourcesExhausted, ie.Kind)
}

func TestCheckedDataTypeStructRecursesAndSharesComplexity(t *testing.T) {
	lim := Root(datalimits.Limits{MaxDepth: 16, MaxComplexity: 3, MaxIdentifierLength: 64})
	st := arrow.StructOf(
		arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int64},
		arrow.Field{Name: "b", Type: arrow.PrimitiveTypes.Int64},
		arrow.Field{Name: "c", Type: arrow.PrimitiveTypes.Int64},
	)
	// struct itself + 3 fields = 4 complexity units against a cap of 3.
	err := CheckedDataType(st, lim)
	require.Error(t, err)
	ie, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, KindResourcesExhausted, ie.Kind)
}

func TestCheckedDataTypeS3DepthExhausted(t *testing.T) {
	lim := Root(datalimits.Limits{MaxDepth: 2, MaxComplexity: 1000, MaxIdentifierLength: 64})
	inner := arrow.StructOf(arrow.Field{Name: "leaf", Type: arrow.PrimitiveTypes.Int64})
	outer := arrow.StructOf(arrow.Field{Name: "inner", Type: inner})
	err := CheckedDataType(outer, lim)
	require.Error(t, err)
}

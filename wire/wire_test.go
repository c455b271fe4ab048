package wire

import (
	"testing"

	"github.com/apache/arrow/go/arrow"
	"github.com/apache/arrow/go/arrow/array"
	"github.com/apache/arrow/go/arrow/memory"
	"github.com/stretchr/testify/require"
)

func buildInt64Array(t *testing.T, values []int64) arrow.Array {
	t.Helper()
	bldr := array.NewInt64Builder(memory.NewGoAllocator())
	defer bldr.Release()
	bldr.AppendValues(values, nil)
	return bldr.NewArray()
}

func TestEncodeDecodeArrayRoundTrip(t *testing.T) {
	arr := buildInt64Array(t, []int64{1, 2, 3})
	defer arr.Release()

	data, err := EncodeArray(arr)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := DecodeArray(data)
	require.NoError(t, err)
	defer decoded.Release()
	require.Equal(t, 3, decoded.Len())
	require.Equal(t, arrow.INT64, decoded.DataType().ID())
}

func TestEncodeDecodeScalarRoundTrip(t *testing.T) {
	arr := buildInt64Array(t, []int64{42})
	defer arr.Release()

	data, err := EncodeScalar(arr)
	require.NoError(t, err)

	decoded, err := DecodeScalar(data)
	require.NoError(t, err)
	defer decoded.Release()
	require.Equal(t, 1, decoded.Len())
}

func TestEncodeScalarRejectsNonLengthOne(t *testing.T) {
	arr := buildInt64Array(t, []int64{1, 2})
	defer arr.Release()
	_, err := EncodeScalar(arr)
	require.Error(t, err)
}

func TestEncodeDecodeDataTypeRoundTrip(t *testing.T) {
	data, err := EncodeDataType(arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)

	dt, err := DecodeDataType(data)
	require.NoError(t, err)
	require.Equal(t, arrow.INT64, dt.ID())
}

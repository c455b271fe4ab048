// Package wire implements the Arrow IPC wire glue of this module:
// converting Arrow arrays and data types to and from the compact
// IPC-byte form carried across the guest/host boundary. Arrays travel
// as a single-column IPC record batch (the column named "a"); data
// types travel as IPC schema bytes; scalars are encoded as length-one
// arrays.
package wire

import (
	"bytes"
	"io"

	"github.com/apache/arrow/go/arrow"
	"github.com/apache/arrow/go/arrow/array"
	"github.com/apache/arrow/go/arrow/ipc"
	"github.com/apache/arrow/go/arrow/memory"
	"github.com/pkg/errors"
)

// columnName is the fixed column name given to every array's IPC
// record batch.
const columnName = "a"

func singleColumnSchema(dt arrow.DataType) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{{Name: columnName, Type: dt, Nullable: true}}, nil)
}

// EncodeArray serializes arr as an Arrow IPC record batch of one
// column named "a".
func EncodeArray(arr arrow.Array) ([]byte, error) {
	schema := singleColumnSchema(arr.DataType())
	rec := array.NewRecord(schema, []arrow.Array{arr}, int64(arr.Len()))
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(rec); err != nil {
		return nil, errors.Wrap(err, "encode array to IPC bytes")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "close IPC writer")
	}
	return buf.Bytes(), nil
}

// DecodeArray deserializes an Arrow IPC record batch of one column
// back into an Array.
func DecodeArray(data []byte) (arrow.Array, error) {
	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, "open IPC reader")
	}
	defer r.Release()

	if !r.Next() {
		if err := r.Err(); err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "read IPC record batch")
		}
		return nil, errors.New("decode array: empty IPC stream")
	}
	rec := r.Record()
	if rec.NumCols() != 1 {
		return nil, errors.Errorf("decode array: expected 1 column, got %d", rec.NumCols())
	}
	col := rec.Column(0)
	col.Retain()
	return col, nil
}

// EncodeDataType serializes dt as IPC schema bytes: a zero-row record
// batch carrying only the schema.
func EncodeDataType(dt arrow.DataType) ([]byte, error) {
	schema := singleColumnSchema(dt)
	alloc := memory.NewGoAllocator()
	bldr := array.NewBuilder(alloc, dt)
	defer bldr.Release()
	arr := bldr.NewArray()
	defer arr.Release()

	rec := array.NewRecord(schema, []arrow.Array{arr}, 0)
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(rec); err != nil {
		return nil, errors.Wrap(err, "encode data type to IPC schema bytes")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "close IPC writer")
	}
	return buf.Bytes(), nil
}

// DecodeDataType deserializes IPC schema bytes back into a DataType.
func DecodeDataType(data []byte) (arrow.DataType, error) {
	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, "open IPC reader")
	}
	defer r.Release()

	schema := r.Schema()
	if schema.NumFields() != 1 {
		return nil, errors.Errorf("decode data type: expected 1 field, got %d", schema.NumFields())
	}
	return schema.Field(0).Type, nil
}

// EncodeScalar encodes a single value as a length-one array.
func EncodeScalar(arr arrow.Array) ([]byte, error) {
	if arr.Len() != 1 {
		return nil, errors.Errorf("encode scalar: expected length-1 array, got length %d", arr.Len())
	}
	return EncodeArray(arr)
}

// DecodeScalar decodes a length-one array back into its single value,
// returning the underlying Array (callers index element 0).
func DecodeScalar(data []byte) (arrow.Array, error) {
	arr, err := DecodeArray(data)
	if err != nil {
		return nil, err
	}
	if arr.Len() != 1 {
		return nil, errors.Errorf("decode scalar: expected length-1 array, got length %d", arr.Len())
	}
	return arr, nil
}

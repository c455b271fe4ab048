package guesttest

import (
	"archive/tar"
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/apache/arrow/go/arrow"
	"github.com/apache/arrow/go/arrow/array"
	"github.com/apache/arrow/go/arrow/memory"

	"github.com/wasmudf/sandbox-host/wire"
)

// Fixture is a hand-assembled WASM guest component plus everything a
// test needs to assert against it without re-deriving the bytes it
// embedded.
type Fixture struct {
	Module []byte

	UDFName             string
	InvokeExport        string
	ReturnTypeExport    string
	ArgType             arrow.DataType
	ExpectedInvokeValue int64

	RootFSPath     string
	RootFSContents []byte

	// TrapExport is a real export that always traps (integer division
	// by zero) for exercising trap-poisoning end to end.
	TrapExport string
	// LoopExport is a real export that never returns, for exercising
	// preemption liveness against a context deadline.
	LoopExport string
}

type wireTypeSignature struct {
	Kind  int      `json:"kind"`
	N     int      `json:"n"`
	Types []string `json:"types"`
}

type wireSignature struct {
	TypeSignature  wireTypeSignature `json:"type_signature"`
	Volatility     int               `json:"volatility"`
	ParameterNames []string          `json:"parameter_names,omitempty"`
}

type wireDescriptor struct {
	Name             string        `json:"name"`
	Signature        wireSignature `json:"signature"`
	InvokeExport     string        `json:"invoke_export"`
	ReturnTypeExport string        `json:"return_type_export,omitempty"`
}

const (
	sigExact        = 4 // udfadapter.SigExact
	volatilityStill = 0 // udfadapter.Immutable
)

// Build assembles the fixture module: a single scalar UDF named
// "echo" taking one int64 argument, with both a real invoke export
// and a real dynamic return_type export, a real root_fs_tar() export
// carrying a tiny TAR image, and real trap/non-terminating exports for
// poisoning and preemption tests.
func Build() (*Fixture, error) {
	argType := arrow.PrimitiveTypes.Int64

	argTypeIPC, err := wire.EncodeDataType(argType)
	if err != nil {
		return nil, err
	}

	const invokeValue = int64(42)
	invokeArr, err := encodeInt64Array(invokeValue)
	if err != nil {
		return nil, err
	}

	schemaBytes, err := wire.EncodeDataType(argType)
	if err != nil {
		return nil, err
	}

	const rootFSPath = "greeting.txt"
	rootFSContents := []byte("hello from the guest root filesystem\n")
	tarBytes, err := buildTAR(rootFSPath, rootFSContents)
	if err != nil {
		return nil, err
	}

	const udfName = "echo"
	const invokeExport = "invoke_echo"
	const returnTypeExport = "return_type_echo"

	descriptors := []wireDescriptor{{
		Name: udfName,
		Signature: wireSignature{
			TypeSignature: wireTypeSignature{
				Kind:  sigExact,
				N:     1,
				Types: []string{base64.StdEncoding.EncodeToString(argTypeIPC)},
			},
			Volatility:     volatilityStill,
			ParameterNames: []string{"x"},
		},
		InvokeExport:     invokeExport,
		ReturnTypeExport: returnTypeExport,
	}}
	udfsJSON, err := json.Marshal(descriptors)
	if err != nil {
		return nil, err
	}

	var data []byte
	udfsOff := len(data)
	data = append(data, udfsJSON...)
	invokeOff := len(data)
	data = append(data, invokeArr...)
	schemaOff := len(data)
	data = append(data, schemaBytes...)
	tarOff := len(data)
	data = append(data, tarBytes...)

	m := &module{data: data}

	tNullaryI64 := m.addType(funcType{results: []byte{valI64}})
	tAllocate := m.addType(funcType{params: []byte{valI32}, results: []byte{valI32}})
	tDeallocate := m.addType(funcType{params: []byte{valI32, valI32}})
	tInvoke := m.addType(funcType{params: []byte{valI32, valI32}, results: []byte{valI32, valI32, valI32}})
	tReturnType := m.addType(funcType{params: []byte{valI32, valI32}, results: []byte{valI32, valI32}})
	tTrap := m.addType(funcType{results: []byte{valI32}})
	tLoop := m.addType(funcType{})

	// allocate(size) -> ptr: a bump allocator over the global free
	// pointer, seeded past the static data segment.
	allocateBody := []byte{
		opGlobalGet, 0x00,
		opLocalGet, 0x00,
		opGlobalGet, 0x00,
	}
	allocateBody = append(allocateBody, opI32Add)
	allocateBody = append(allocateBody, opGlobalSet, 0x00)
	allocateBody = append(allocateBody, opEnd)
	m.addFunc(tAllocate, allocateBody, "allocate")

	// deallocate(ptr, size): a no-op, the allocator never reclaims.
	m.addFunc(tDeallocate, []byte{opEnd}, "deallocate")

	udfsBody := append(i64Const(packPtrLen(udfsOff, len(udfsJSON))), opEnd)
	m.addFunc(tNullaryI64, udfsBody, "udfs")

	invokeBody := append(i32Const(0), i32Const(int32(invokeOff))...)
	invokeBody = append(invokeBody, i32Const(int32(len(invokeArr)))...)
	invokeBody = append(invokeBody, opEnd)
	m.addFunc(tInvoke, invokeBody, invokeExport)

	returnTypeBody := append(i32Const(int32(schemaOff)), i32Const(int32(len(schemaBytes)))...)
	returnTypeBody = append(returnTypeBody, opEnd)
	m.addFunc(tReturnType, returnTypeBody, returnTypeExport)

	rootFSBody := append(i64Const(packPtrLen(tarOff, len(tarBytes))), opEnd)
	m.addFunc(tNullaryI64, rootFSBody, "root_fs_tar")

	// divide_by_zero: a genuine i32.div_s trap, never reaches opEnd.
	divBody := append(i32Const(1), i32Const(0)...)
	divBody = append(divBody, opI32DivS, opEnd)
	m.addFunc(tTrap, divBody, "divide_by_zero")

	// loop_forever: an unconditional backward branch, never returns.
	loopBody := []byte{opLoop, blockVoid, opBr, 0x00, opEnd, opEnd}
	m.addFunc(tLoop, loopBody, "loop_forever")

	globalInit := int32(len(data))
	encoded := m.encode(pagesFor(len(data)), globalInit)

	return &Fixture{
		Module:              encoded,
		UDFName:             udfName,
		InvokeExport:        invokeExport,
		ReturnTypeExport:    returnTypeExport,
		ArgType:             argType,
		ExpectedInvokeValue: invokeValue,
		RootFSPath:          rootFSPath,
		RootFSContents:      rootFSContents,
		TrapExport:          "divide_by_zero",
		LoopExport:          "loop_forever",
	}, nil
}

func packPtrLen(ptr, n int) int64 {
	return int64(uint64(uint32(ptr))<<32 | uint64(uint32(n)))
}

func encodeInt64Array(v int64) ([]byte, error) {
	bldr := array.NewInt64Builder(memory.NewGoAllocator())
	defer bldr.Release()
	bldr.Append(v)
	arr := bldr.NewArray()
	defer arr.Release()
	return wire.EncodeArray(arr)
}

func buildTAR(name string, contents []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name:     name,
		Typeflag: tar.TypeReg,
		Size:     int64(len(contents)),
		Mode:     0o644,
	}
	if err := w.WriteHeader(hdr); err != nil {
		return nil, err
	}
	if _, err := w.Write(contents); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

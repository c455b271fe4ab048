// Package guesttest hand-assembles small WebAssembly guest components
// for this module's own tests, byte by byte, with no WASM toolchain
// involved: a handful of constant-returning exports backed by a data
// section built from this repo's own wire encoders. It exists because
// every other test fixture in this tree (emptyModule) declares zero
// exports, so nothing ever drove a real guest export end to end.
package guesttest

// valI32/valI64 are the WASM value-type encoding bytes used in type
// and global sections.
const (
	valI32 byte = 0x7F
	valI64 byte = 0x7E
)

const (
	opEnd       byte = 0x0B
	opBr        byte = 0x0C
	opLoop      byte = 0x03
	opLocalGet  byte = 0x20
	opGlobalGet byte = 0x23
	opGlobalSet byte = 0x24
	opI32Const  byte = 0x41
	opI64Const  byte = 0x42
	opI32Add    byte = 0x6A
	opI32DivS   byte = 0x6D
	blockVoid   byte = 0x40
)

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func sleb128(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func i32Const(v int32) []byte { return append([]byte{opI32Const}, sleb128(int64(v))...) }
func i64Const(v int64) []byte { return append([]byte{opI64Const}, sleb128(v)...) }

// funcType is a WASM function type: a vector of param value types and
// a vector of result value types.
type funcType struct {
	params  []byte
	results []byte
}

// exportEntry is one entry of the export section. kind follows the WASM
// external-kind encoding: 0 func, 2 mem.
type exportEntry struct {
	name string
	kind byte
	idx  uint32
}

const (
	extKindFunc byte = 0x00
	extKindMem  byte = 0x02
)

// module is a minimal incremental builder for the subset of the WASM
// binary format this package's fixtures need: types, functions (no
// imports), one memory, one mutable i32 global, exports, code, and a
// single data segment at offset 0.
type module struct {
	types   []funcType
	funcs   []int // type index per function, in function-index order
	codes   [][]byte
	exports []exportEntry
	data    []byte
}

// addType appends ft (without deduplicating), returning its type index.
func (m *module) addType(ft funcType) uint32 {
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// addFunc appends a function with the given type and body instructions
// (the body must end in opEnd; no locals are supported), exporting it
// under name. Returns its function index.
func (m *module) addFunc(typeIdx uint32, body []byte, name string) uint32 {
	idx := uint32(len(m.funcs))
	m.funcs = append(m.funcs, int(typeIdx))
	m.codes = append(m.codes, body)
	m.exports = append(m.exports, exportEntry{name: name, kind: extKindFunc, idx: idx})
	return idx
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint64(len(content)))...)
	return append(out, content...)
}

// encode assembles the full module byte stream: header, type,
// function, memory (memPages pages, exported as "memory"), a single
// mutable i32 global seeded to globalInit (the bump allocator's
// initial free pointer, placed just past the data segment), export,
// code, and data sections, in the order the binary format requires.
func (m *module) encode(memPages uint32, globalInit int32) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var typeContent []byte
	typeContent = append(typeContent, uleb128(uint64(len(m.types)))...)
	for _, ft := range m.types {
		typeContent = append(typeContent, 0x60)
		typeContent = append(typeContent, uleb128(uint64(len(ft.params)))...)
		typeContent = append(typeContent, ft.params...)
		typeContent = append(typeContent, uleb128(uint64(len(ft.results)))...)
		typeContent = append(typeContent, ft.results...)
	}
	out = append(out, section(1, typeContent)...)

	var funcContent []byte
	funcContent = append(funcContent, uleb128(uint64(len(m.funcs)))...)
	for _, idx := range m.funcs {
		funcContent = append(funcContent, uleb128(uint64(idx))...)
	}
	out = append(out, section(3, funcContent)...)

	memContent := uleb128(1)
	memContent = append(memContent, 0x00)
	memContent = append(memContent, uleb128(uint64(memPages))...)
	out = append(out, section(5, memContent)...)

	var globalContent []byte
	globalContent = append(globalContent, uleb128(1)...)
	globalContent = append(globalContent, valI32, 0x01)
	globalContent = append(globalContent, i32Const(globalInit)...)
	globalContent = append(globalContent, opEnd)
	out = append(out, section(6, globalContent)...)

	var exportContent []byte
	exportContent = append(exportContent, uleb128(uint64(len(m.exports)+1))...)
	exportContent = appendExport(exportContent, "memory", extKindMem, 0)
	for _, e := range m.exports {
		exportContent = appendExport(exportContent, e.name, e.kind, e.idx)
	}
	out = append(out, section(7, exportContent)...)

	var codeContent []byte
	codeContent = append(codeContent, uleb128(uint64(len(m.codes)))...)
	for _, instrs := range m.codes {
		body := append([]byte{0x00}, instrs...) // zero local-declaration groups
		codeContent = append(codeContent, uleb128(uint64(len(body)))...)
		codeContent = append(codeContent, body...)
	}
	out = append(out, section(10, codeContent)...)

	var dataContent []byte
	dataContent = append(dataContent, uleb128(1)...)
	dataContent = append(dataContent, uleb128(0)...)
	dataContent = append(dataContent, i32Const(0)...)
	dataContent = append(dataContent, opEnd)
	dataContent = append(dataContent, uleb128(uint64(len(m.data)))...)
	dataContent = append(dataContent, m.data...)
	out = append(out, section(11, dataContent)...)

	return out
}

func appendExport(buf []byte, name string, kind byte, idx uint32) []byte {
	buf = append(buf, uleb128(uint64(len(name)))...)
	buf = append(buf, name...)
	buf = append(buf, kind)
	return append(buf, uleb128(uint64(idx))...)
}

const wasmPageSize = 65536

// pagesFor returns enough 64KiB pages to hold dataLen bytes of static
// data plus headroom for the bump allocator's test-lifetime growth.
func pagesFor(dataLen int) uint32 {
	need := dataLen + wasmPageSize*2
	return uint32((need + wasmPageSize - 1) / wasmPageSize)
}

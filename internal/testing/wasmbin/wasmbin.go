// Package wasmbin encodes small WebAssembly 1.0 (20191205) modules for tests.
//
// The guest under cmd/addwasm needs GOOS=wasip1 to build, so host tests use
// modules encoded here instead. They follow the same ABI: an "add" export,
// an "_initialize" start function and imports from the "diag" host module.
//
// Only the sections those fixtures need are supported.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-format%E2%91%A0
package wasmbin

import (
	"github.com/gramcheck/wasmshim/internal/leb128"
)

// ValueType is a WebAssembly number type.
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// ExternType classifies imports and exports.
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// SectionID identifies a section in the binary format.
type SectionID = byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
)

// Opcodes used by the fixtures.
const (
	OpcodeUnreachable byte = 0x00
	OpcodeIf          byte = 0x04
	OpcodeEnd         byte = 0x0b
	OpcodeCall        byte = 0x10
	OpcodeLocalGet    byte = 0x20
	OpcodeGlobalGet   byte = 0x23
	OpcodeGlobalSet   byte = 0x24
	OpcodeI32Const    byte = 0x41
	OpcodeI64Const    byte = 0x42
	OpcodeI32Eq       byte = 0x46
	OpcodeI32Add      byte = 0x6a
	OpcodeI64Add      byte = 0x7c

	// BlockTypeEmpty is the block type of an if with no results.
	BlockTypeEmpty byte = 0x40
)

var (
	magic   = []byte{0x00, 0x61, 0x73, 0x6d}
	version = []byte{0x01, 0x00, 0x00, 0x00}
)

// FunctionType is a function signature.
type FunctionType struct {
	Params, Results []ValueType
}

// Import is a function import.
type Import struct {
	Module, Name string
	// TypeIndex indexes Module.Types.
	TypeIndex uint32
}

// Func is a module-defined function. Body excludes the locals vector.
type Func struct {
	TypeIndex  uint32
	LocalTypes []ValueType
	Body       []byte
}

// Memory is a memory definition in pages of 64KiB.
type Memory struct {
	Min uint32
	Max *uint32
}

// Global is an i32 global initialized to a constant.
type Global struct {
	Mutable bool
	Init    int32
}

// Export exports an index of the given kind.
type Export struct {
	Name  string
	Type  ExternType
	Index uint32
}

// DataSegment initializes memory 0 at Offset.
type DataSegment struct {
	Offset int32
	Init   []byte
}

// Module is the subset of a WebAssembly module the fixtures use. Function
// indices count imports first, then Funcs.
type Module struct {
	Types   []FunctionType
	Imports []Import
	Funcs   []Func
	Memory  *Memory
	Globals []Global
	Exports []Export
	Data    []DataSegment
}

// Encode returns the module in the WebAssembly 1.0 (20191205) Binary Format.
func Encode(m *Module) []byte {
	bytes := append(append([]byte{}, magic...), version...)
	if len(m.Types) > 0 {
		bytes = append(bytes, encodeTypeSection(m.Types)...)
	}
	if len(m.Imports) > 0 {
		bytes = append(bytes, encodeImportSection(m.Imports)...)
	}
	if len(m.Funcs) > 0 {
		bytes = append(bytes, encodeFunctionSection(m.Funcs)...)
	}
	if m.Memory != nil {
		bytes = append(bytes, encodeMemorySection(m.Memory)...)
	}
	if len(m.Globals) > 0 {
		bytes = append(bytes, encodeGlobalSection(m.Globals)...)
	}
	if len(m.Exports) > 0 {
		bytes = append(bytes, encodeExportSection(m.Exports)...)
	}
	if len(m.Funcs) > 0 {
		bytes = append(bytes, encodeCodeSection(m.Funcs)...)
	}
	if len(m.Data) > 0 {
		bytes = append(bytes, encodeDataSection(m.Data)...)
	}
	return bytes
}

// encodeSection encodes the sectionID, the size of its contents in bytes, followed by the contents.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
func encodeSection(sectionID SectionID, contents []byte) []byte {
	return append([]byte{sectionID}, encodeSizePrefixed(contents)...)
}

func encodeSizePrefixed(data []byte) []byte {
	size := leb128.EncodeUint32(uint32(len(data)))
	return append(size, data...)
}

func encodeName(name string) []byte {
	return encodeSizePrefixed([]byte(name))
}

// encodeVector prefixes the concatenated items with their count.
func encodeVector(count int, items []byte) []byte {
	return append(leb128.EncodeUint32(uint32(count)), items...)
}

// EncodeFunctionType returns the type encoded as 0x60 followed by the parameter and result vectors.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#function-types%E2%91%A4
func EncodeFunctionType(t FunctionType) []byte {
	data := append([]byte{0x60}, encodeVector(len(t.Params), t.Params)...)
	return append(data, encodeVector(len(t.Results), t.Results)...)
}

func encodeTypeSection(types []FunctionType) []byte {
	var contents []byte
	for _, t := range types {
		contents = append(contents, EncodeFunctionType(t)...)
	}
	return encodeSection(SectionIDType, encodeVector(len(types), contents))
}

func encodeImportSection(imports []Import) []byte {
	var contents []byte
	for _, i := range imports {
		contents = append(contents, encodeName(i.Module)...)
		contents = append(contents, encodeName(i.Name)...)
		contents = append(contents, ExternTypeFunc)
		contents = append(contents, leb128.EncodeUint32(i.TypeIndex)...)
	}
	return encodeSection(SectionIDImport, encodeVector(len(imports), contents))
}

func encodeFunctionSection(funcs []Func) []byte {
	var contents []byte
	for _, f := range funcs {
		contents = append(contents, leb128.EncodeUint32(f.TypeIndex)...)
	}
	return encodeSection(SectionIDFunction, encodeVector(len(funcs), contents))
}

// EncodeLimitsType returns the `limitsType` (min, max) encoded in WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#limits%E2%91%A6
func EncodeLimitsType(min uint32, max *uint32) []byte {
	if max == nil {
		return append(leb128.EncodeUint32(0x00), leb128.EncodeUint32(min)...)
	}
	return append(leb128.EncodeUint32(0x01), append(leb128.EncodeUint32(min), leb128.EncodeUint32(*max)...)...)
}

func encodeMemorySection(m *Memory) []byte {
	return encodeSection(SectionIDMemory, encodeVector(1, EncodeLimitsType(m.Min, m.Max)))
}

func encodeGlobalSection(globals []Global) []byte {
	var contents []byte
	for _, g := range globals {
		mut := byte(0)
		if g.Mutable {
			mut = 1
		}
		contents = append(contents, ValueTypeI32, mut)
		contents = append(contents, encodeI32ConstExpr(g.Init)...)
	}
	return encodeSection(SectionIDGlobal, encodeVector(len(globals), contents))
}

func encodeI32ConstExpr(v int32) []byte {
	expr := append([]byte{OpcodeI32Const}, leb128.EncodeInt32(v)...)
	return append(expr, OpcodeEnd)
}

func encodeExportSection(exports []Export) []byte {
	var contents []byte
	for _, e := range exports {
		contents = append(contents, encodeName(e.Name)...)
		contents = append(contents, e.Type)
		contents = append(contents, leb128.EncodeUint32(e.Index)...)
	}
	return encodeSection(SectionIDExport, encodeVector(len(exports), contents))
}

// encodeCode returns the function body encoded in WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-code
func encodeCode(f Func) []byte {
	// One local block per declared local keeps this simple; the format allows
	// runs of the same type to share a block but does not require it.
	locals := leb128.EncodeUint32(uint32(len(f.LocalTypes)))
	for _, vt := range f.LocalTypes {
		locals = append(locals, 0x01, vt)
	}
	return encodeSizePrefixed(append(locals, f.Body...))
}

func encodeCodeSection(funcs []Func) []byte {
	var contents []byte
	for _, f := range funcs {
		contents = append(contents, encodeCode(f)...)
	}
	return encodeSection(SectionIDCode, encodeVector(len(funcs), contents))
}

func encodeDataSection(data []DataSegment) []byte {
	var contents []byte
	for _, d := range data {
		contents = append(contents, 0x00) // active, memory 0
		contents = append(contents, encodeI32ConstExpr(d.Offset)...)
		contents = append(contents, encodeSizePrefixed(d.Init)...)
	}
	return encodeSection(SectionIDData, encodeVector(len(data), contents))
}

package wasmbin

import "github.com/gramcheck/wasmshim/internal/leb128"

// Signatures shared by the fixtures.
var (
	reportType = FunctionType{Params: []ValueType{ValueTypeI32, ValueTypeI32}}
	voidType   = FunctionType{}
	addType    = FunctionType{Params: []ValueType{ValueTypeI32, ValueTypeI32}, Results: []ValueType{ValueTypeI32}}
	exitType   = FunctionType{Params: []ValueType{ValueTypeI32}}
)

// Type indices in guestTypes.
const (
	reportTypeIndex uint32 = iota
	voidTypeIndex
	addTypeIndex
	exitTypeIndex
)

var guestTypes = []FunctionType{reportType, voidType, addType, exitType}

var addBody = []byte{OpcodeLocalGet, 0, OpcodeLocalGet, 1, OpcodeI32Add, OpcodeEnd}

// diagImports are the host functions the Go guest imports. Function index 0 is
// diag.report and 1 is diag.installed.
var diagImports = []Import{
	{Module: "diag", Name: "report", TypeIndex: reportTypeIndex},
	{Module: "diag", Name: "installed", TypeIndex: voidTypeIndex},
}

func pages(n uint32) *Memory { return &Memory{Min: n} }

// AddGuest mirrors a healthy build of cmd/addwasm: _initialize announces the
// panic hook through diag.installed and add returns the wrapped sum.
func AddGuest() []byte {
	return Encode(&Module{
		Types:   guestTypes,
		Imports: diagImports,
		Funcs: []Func{
			{TypeIndex: addTypeIndex, Body: addBody},
			{TypeIndex: voidTypeIndex, Body: []byte{OpcodeCall, 1, OpcodeEnd}},
		},
		Memory: pages(1),
		Exports: []Export{
			{Name: "add", Type: ExternTypeFunc, Index: 2},
			{Name: "_initialize", Type: ExternTypeFunc, Index: 3},
			{Name: "memory", Type: ExternTypeMemory, Index: 0},
		},
	})
}

// BareAddGuest only exports add: no imports, no start function.
func BareAddGuest() []byte {
	return Encode(&Module{
		Types: []FunctionType{addType},
		Funcs: []Func{{TypeIndex: 0, Body: addBody}},
		Exports: []Export{
			{Name: "add", Type: ExternTypeFunc, Index: 0},
		},
	})
}

// PanickingGuest behaves like AddGuest, except add called with a == trigger
// reports msg through diag.report and then traps with unreachable.
func PanickingGuest(trigger int32, msg string) []byte {
	body := panicPrologue(trigger, msg, []byte{OpcodeUnreachable})
	return Encode(&Module{
		Types:   guestTypes,
		Imports: diagImports,
		Funcs: []Func{
			{TypeIndex: addTypeIndex, Body: body},
			{TypeIndex: voidTypeIndex, Body: []byte{OpcodeCall, 1, OpcodeEnd}},
		},
		Memory: pages(1),
		Exports: []Export{
			{Name: "add", Type: ExternTypeFunc, Index: 2},
			{Name: "_initialize", Type: ExternTypeFunc, Index: 3},
			{Name: "memory", Type: ExternTypeMemory, Index: 0},
		},
		Data: []DataSegment{{Offset: 0, Init: []byte(msg)}},
	})
}

// ExitingGuest is how a Go guest built for wasip1 dies on panic: it reports,
// then calls wasi_snapshot_preview1.proc_exit(2).
func ExitingGuest(trigger int32, msg string) []byte {
	// function index 2 is proc_exit
	exit := []byte{OpcodeI32Const, 2, OpcodeCall, 2, OpcodeUnreachable}
	body := panicPrologue(trigger, msg, exit)
	return Encode(&Module{
		Types: guestTypes,
		Imports: append(append([]Import{}, diagImports...),
			Import{Module: "wasi_snapshot_preview1", Name: "proc_exit", TypeIndex: exitTypeIndex}),
		Funcs: []Func{
			{TypeIndex: addTypeIndex, Body: body},
			{TypeIndex: voidTypeIndex, Body: []byte{OpcodeCall, 1, OpcodeEnd}},
		},
		Memory: pages(1),
		Exports: []Export{
			{Name: "add", Type: ExternTypeFunc, Index: 3},
			{Name: "_initialize", Type: ExternTypeFunc, Index: 4},
			{Name: "memory", Type: ExternTypeMemory, Index: 0},
		},
		Data: []DataSegment{{Offset: 0, Init: []byte(msg)}},
	})
}

// panicPrologue returns the add body: when local 0 equals trigger, it calls
// diag.report(0, len(msg)) followed by fatal, otherwise it adds.
func panicPrologue(trigger int32, msg string, fatal []byte) []byte {
	body := []byte{OpcodeLocalGet, 0, OpcodeI32Const}
	body = append(body, leb128.EncodeInt32(trigger)...)
	body = append(body, OpcodeI32Eq, OpcodeIf, BlockTypeEmpty, OpcodeI32Const, 0, OpcodeI32Const)
	body = append(body, leb128.EncodeInt32(int32(len(msg)))...)
	body = append(body, OpcodeCall, 0)
	body = append(body, fatal...)
	body = append(body, OpcodeEnd)
	return append(body, addBody...)
}

// JSGuest imports from the module syscall/js builds use, which wasmshim
// refuses to host.
func JSGuest() []byte {
	return Encode(&Module{
		Types:   []FunctionType{addType, exitType},
		Imports: []Import{{Module: "gojs", Name: "runtime.wasmExit", TypeIndex: 1}},
		Funcs:   []Func{{TypeIndex: 0, Body: addBody}},
		Exports: []Export{
			{Name: "add", Type: ExternTypeFunc, Index: 1},
		},
	})
}

// NoAddGuest exports a function with the right signature under another name.
func NoAddGuest() []byte {
	return Encode(&Module{
		Types: []FunctionType{addType},
		Funcs: []Func{{TypeIndex: 0, Body: addBody}},
		Exports: []Export{
			{Name: "sum", Type: ExternTypeFunc, Index: 0},
		},
	})
}

// WideAddGuest exports add over i64 instead of i32.
func WideAddGuest() []byte {
	return Encode(&Module{
		Types: []FunctionType{{
			Params:  []ValueType{ValueTypeI64, ValueTypeI64},
			Results: []ValueType{ValueTypeI64},
		}},
		Funcs: []Func{{TypeIndex: 0, Body: []byte{OpcodeLocalGet, 0, OpcodeLocalGet, 1, OpcodeI64Add, OpcodeEnd}}},
		Exports: []Export{
			{Name: "add", Type: ExternTypeFunc, Index: 0},
		},
	})
}

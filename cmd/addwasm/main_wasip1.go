//go:build wasip1

package main

import (
	"unsafe"

	"github.com/gramcheck/wasmshim/internal/arith"
	"github.com/gramcheck/wasmshim/internal/panichook"
)

//go:wasmimport diag report
func report(ptr, size uint32)

//go:wasmimport diag installed
func installed()

// init runs from _initialize when the host instantiates the module.
func init() {
	if panichook.Install(panichook.ReporterFunc(reportToHost)) {
		installed()
	}
}

func reportToHost(msg string) {
	if msg == "" {
		return
	}
	report(uint32(uintptr(unsafe.Pointer(unsafe.StringData(msg)))), uint32(len(msg)))
}

//go:wasmexport add
func add(a, b int32) int32 {
	defer panichook.Recover()
	return arith.Add(a, b)
}

// main is required even though the module is built as a reactor.
func main() {}

//go:build js

package main

import (
	"fmt"
	"syscall/js"

	"github.com/gramcheck/wasmshim/internal/arith"
	"github.com/gramcheck/wasmshim/internal/panichook"
)

func init() {
	panichook.Install(panichook.ReporterFunc(func(msg string) {
		js.Global().Get("console").Call("error", msg)
	}))
}

func main() {
	js.Global().Set("add", js.FuncOf(add))
	select {} // keep the module alive while the page uses it
}

func add(_ js.Value, args []js.Value) any {
	defer panichook.Recover()
	if len(args) != 2 {
		panic(fmt.Sprintf("add: expected 2 arguments, got %d", len(args)))
	}
	return arith.Add(int32(args[0].Int()), int32(args[1].Int()))
}

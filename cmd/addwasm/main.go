//go:build !wasip1 && !js

// Command addwasm is the guest module: it exports add(i32, i32) i32 and
// installs a panic hook when the module is loaded.
//
// Build it for a WASI host (such as wasmshim):
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o addwasm.wasm ./cmd/addwasm
//
// or for a browser:
//
//	GOOS=js GOARCH=wasm go build -o addwasm.wasm ./cmd/addwasm
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "addwasm is a WebAssembly module; build it with GOOS=wasip1 or GOOS=js and GOARCH=wasm")
	os.Exit(2)
}

package wasmshim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/sys"
)

var (
	// ErrClosed is returned when calling a Shim after Close.
	ErrClosed = errors.New("wasmshim: closed")

	// ErrMissingExport is returned by New when the guest does not export add.
	ErrMissingExport = errors.New("wasmshim: guest does not export " + addExport)

	// ErrSignature is returned by New when add is not (i32, i32) -> i32.
	ErrSignature = errors.New("wasmshim: " + addExport + " must have the signature (i32, i32) -> i32")

	// ErrUnsupportedABI is returned by New for guests built with GOOS=js,
	// which need a browser (or wasm_exec.js) rather than a WASI host.
	ErrUnsupportedABI = errors.New("wasmshim: js/wasm guests run in browsers; build the guest with GOOS=wasip1")
)

// TrapError is returned when the guest trapped or exited during a call, for
// example because it panicked.
type TrapError struct {
	// Module is the name of the guest instance that failed. It was discarded.
	Module string
	// Diagnostic is the report delivered by the guest's panic hook, or empty
	// when the guest died without reporting.
	Diagnostic string
	// Err is the error from the runtime.
	Err error
}

// Error implements error. Only the first line of the diagnostic is included;
// the full report, including the guest stack, is in Diagnostic.
func (e *TrapError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("guest %s trapped: %v", e.Module, e.Err)
	}
	first, _, _ := strings.Cut(e.Diagnostic, "\n")
	return fmt.Sprintf("guest %s trapped: %s: %v", e.Module, first, e.Err)
}

// Unwrap returns the runtime error.
func (e *TrapError) Unwrap() error {
	return e.Err
}

// ExitCode returns the code passed to proc_exit, if the guest exited. A Go
// guest exits with code 2 after an unrecovered panic.
func (e *TrapError) ExitCode() (code uint32, exited bool) {
	var exitErr *sys.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}

// Package panichook turns a guest panic into a readable report for the host.
//
// A guest calls Install once from init, then defers Recover in every exported
// function:
//
//	func init() {
//		panichook.Install(panichook.ReporterFunc(reportToHost))
//	}
//
//	//go:wasmexport add
//	func add(a, b int32) int32 {
//		defer panichook.Recover()
//		return arith.Add(a, b)
//	}
//
// Recover always re-panics, so the host still observes a trap after the report
// is delivered. Without the hook the host only sees an opaque exit code.
package panichook

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

// Reporter receives the formatted panic report.
type Reporter interface {
	Report(msg string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(msg string)

// Report implements Reporter.Report.
func (f ReporterFunc) Report(msg string) { f(msg) }

// hook is the install-once state. The zero value is ready to use.
type hook struct {
	once     sync.Once
	done     atomic.Bool
	reporter Reporter
	// fallback is written to when no reporter was installed.
	fallback io.Writer
}

var global = hook{fallback: os.Stderr}

// Install registers r for the lifetime of the module. Only the first call has
// an effect; it returns true when this call performed the install.
func Install(r Reporter) bool {
	return global.install(r)
}

// Installed reports whether Install has been called.
func Installed() bool {
	return global.installed()
}

// Recover must be deferred directly by an exported function. When a panic is
// in flight it is reported and then re-raised.
func Recover() {
	if v := recover(); v != nil {
		global.report(v, debug.Stack())
		panic(v)
	}
}

func (h *hook) install(r Reporter) (installed bool) {
	h.once.Do(func() {
		h.reporter = r
		h.done.Store(true)
		installed = true
	})
	return
}

func (h *hook) installed() bool {
	return h.done.Load()
}

func (h *hook) report(v any, stack []byte) {
	msg := Format(v, stack)
	if h.reporter != nil {
		h.reporter.Report(msg)
		return
	}
	if h.fallback != nil {
		_, _ = io.WriteString(h.fallback, msg+"\n")
	}
}

// Format renders a panic value and its stack the way the host displays it.
func Format(v any, stack []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "panicked: %v", v)
	if len(stack) > 0 {
		b.WriteString("\n\n")
		b.Write(stack)
	}
	return b.String()
}

package wasmshim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Host module the guest imports its panic reporting functions from.
const (
	diagModuleName = "diag"
	diagReport     = "report"
	diagInstalled  = "installed"
)

// maxDiagnostics bounds the reports kept by a Shim; older ones are dropped.
const maxDiagnostics = 64

// Diagnostic is a panic report delivered by a guest.
type Diagnostic struct {
	// Module is the name of the guest instance that reported.
	Module string
	// Message is the formatted panic, including the guest stack.
	Message string
	Time    time.Time
}

// diagnostics implements the "diag" host module.
type diagnostics struct {
	log *zap.Logger
	now func() time.Time

	mu       sync.Mutex
	reports  []Diagnostic
	pending  map[string]string // latest report not yet attached to a TrapError
	installs map[string]int
}

func newDiagnostics(log *zap.Logger) *diagnostics {
	return &diagnostics{
		log:      log,
		now:      time.Now,
		pending:  map[string]string{},
		installs: map[string]int{},
	}
}

// instantiate defines the host functions:
//
//	(import "diag" "report" (func (param $ptr i32) (param $len i32)))
//	(import "diag" "installed" (func))
func (d *diagnostics) instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	return r.NewHostModuleBuilder(diagModuleName).
		NewFunctionBuilder().
		WithFunc(d.report).
		WithParameterNames("ptr", "len").
		Export(diagReport).
		NewFunctionBuilder().
		WithFunc(d.installed).
		Export(diagInstalled).
		Instantiate(ctx)
}

func (d *diagnostics) report(_ context.Context, m api.Module, ptr, size uint32) {
	msg := readString(m, ptr, size)
	name := m.Name()
	d.log.Error("guest panicked", zap.String("module", name), zap.String("report", msg))

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[name] = msg
	d.reports = append(d.reports, Diagnostic{Module: name, Message: msg, Time: d.now()})
	if over := len(d.reports) - maxDiagnostics; over > 0 {
		d.reports = append(d.reports[:0], d.reports[over:]...)
	}
}

func (d *diagnostics) installed(_ context.Context, m api.Module) {
	name := m.Name()
	d.mu.Lock()
	d.installs[name]++
	count := d.installs[name]
	d.mu.Unlock()

	if count > 1 {
		d.log.Warn("panic hook installed more than once", zap.String("module", name), zap.Int("count", count))
		return
	}
	d.log.Debug("panic hook installed", zap.String("module", name))
}

// take returns and clears the pending report of the named instance.
func (d *diagnostics) take(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	msg := d.pending[name]
	delete(d.pending, name)
	return msg
}

// forget drops per-instance state once an instance is discarded.
func (d *diagnostics) forget(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, name)
}

func (d *diagnostics) list() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.reports...)
}

func (d *diagnostics) installCount() (total int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.installs {
		total += n
	}
	return
}

// readString copies a guest string. Invalid pointers are reported rather than
// trapping: the guest is already failing and the report is all we get.
func readString(m api.Module, ptr, size uint32) string {
	mem := m.Memory()
	if mem == nil {
		return fmt.Sprintf("<invalid diagnostic ptr=%d len=%d: no memory>", ptr, size)
	}
	b, ok := mem.Read(ptr, size)
	if !ok {
		return fmt.Sprintf("<invalid diagnostic ptr=%d len=%d>", ptr, size)
	}
	return string(b)
}

// Package wasmshim hosts the addwasm guest: a WebAssembly module exporting
// add(i32, i32) i32 that reports panics back to its host.
//
// Load the guest once, then call it from any number of goroutines:
//
//	s, err := wasmshim.Load(ctx, "addwasm.wasm", wasmshim.NewConfig())
//	if err != nil {
//		return err
//	}
//	defer s.Close(ctx)
//
//	sum, err := s.Add(ctx, 2, 3) // 5
//
// Guests are built from cmd/addwasm with GOOS=wasip1 -buildmode=c-shared, or
// from any source language, as long as they export add with that signature.
package wasmshim

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/experimental/logging"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

// instanceNamePrefix prefixes the module name of each guest instance.
const instanceNamePrefix = "addwasm-"

// Shim is a loaded guest. It is safe for concurrent use.
type Shim struct {
	cfg      *config
	log      *zap.Logger
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	modCfg   wazero.ModuleConfig
	diag     *diagnostics

	// pool holds one entry per instance slot. A nil entry is a slot whose
	// instance was discarded and will be re-instantiated on next use.
	pool chan *instance

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// instance is one instantiation of the guest. Calls into an instance are
// serialized by the pool.
type instance struct {
	name           string
	mod            api.Module
	add            api.Function
	stdout, stderr *zapio.Writer
}

// Load reads a guest from path and calls New. Failures are logged as well as
// returned, since a missing guest is usually a build problem.
func Load(ctx context.Context, path string, cfg Config) (*Shim, error) {
	c := configOf(cfg)
	wasm, err := os.ReadFile(path)
	if err != nil {
		c.log.Error("failed to read guest", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("read guest: %w", err)
	}
	s, err := New(ctx, wasm, c)
	if err != nil {
		c.log.Error("failed to load guest", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return s, nil
}

// New compiles the guest binary, then instantiates Config.WithInstances
// copies of it. Each instance runs its start functions once, which is where a
// Go guest installs its panic hook.
func New(ctx context.Context, wasm []byte, cfg Config) (*Shim, error) {
	c := configOf(cfg)

	if c.hostLogging {
		w := &stringWriter{&zapio.Writer{Log: c.log.Named("host"), Level: zap.DebugLevel}}
		ctx = experimental.WithFunctionListenerFactory(ctx, logging.NewHostLoggingListenerFactory(w, logging.LogScopeAll))
	}

	rtc := wazero.NewRuntimeConfig().WithCloseOnContextDone(c.closeOnContextDone)
	if c.cache != nil {
		rtc = rtc.WithCompilationCache(c.cache)
	}

	s := &Shim{
		cfg:  c,
		log:  c.log,
		rt:   wazero.NewRuntimeWithConfig(ctx, rtc),
		diag: newDiagnostics(c.log),
		pool: make(chan *instance, c.instances),
		done: make(chan struct{}),
		modCfg: wazero.NewModuleConfig().
			WithStartFunctions(c.startFunctions...).
			WithSysWalltime().
			WithSysNanotime().
			WithRandSource(rand.Reader),
	}
	if err := s.init(ctx, wasm); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Shim) init(ctx context.Context, wasm []byte) error {
	compiled, err := s.rt.CompileModule(ctx, wasm)
	if err != nil {
		return fmt.Errorf("compile guest: %w", err)
	}
	s.compiled = compiled

	needs, err := checkABI(compiled)
	if err != nil {
		return err
	}
	if needs.needsWASI {
		if _, err = wasi_snapshot_preview1.Instantiate(ctx, s.rt); err != nil {
			return fmt.Errorf("instantiate %s: %w", wasi_snapshot_preview1.ModuleName, err)
		}
	}
	// Guests that do not import diag are still served; they just die silently.
	if needs.needsDiag {
		if _, err = s.diag.instantiate(ctx, s.rt); err != nil {
			return fmt.Errorf("instantiate %s: %w", diagModuleName, err)
		}
	}

	for i := 0; i < s.cfg.instances; i++ {
		inst, err := s.instantiate(ctx)
		if err != nil {
			return err
		}
		s.pool <- inst
	}
	s.log.Debug("guest loaded", zap.Int("instances", s.cfg.instances), zap.Bool("wasi", needs.needsWASI))
	return nil
}

// instantiate creates a guest instance with a unique name, so diagnostics can
// be attributed to it.
func (s *Shim) instantiate(ctx context.Context) (*instance, error) {
	name := instanceNamePrefix + uuid.NewString()
	log := s.log.With(zap.String("module", name))
	inst := &instance{
		name:   name,
		stdout: &zapio.Writer{Log: log.With(zap.String("stream", "stdout")), Level: zap.InfoLevel},
		stderr: &zapio.Writer{Log: log.With(zap.String("stream", "stderr")), Level: zap.WarnLevel},
	}

	mod, err := s.rt.InstantiateModule(ctx, s.compiled, s.modCfg.
		WithName(name).
		WithStdout(inst.stdout).
		WithStderr(inst.stderr))
	if err != nil {
		inst.closeWriters()
		return nil, fmt.Errorf("instantiate guest: %w", s.trap(name, err))
	}
	inst.mod = mod
	inst.add = mod.ExportedFunction(addExport)
	return inst, nil
}

// Add calls the guest's add. Overflow wraps, as for Go's int32.
//
// When the guest traps, Add returns a *TrapError holding the guest's panic
// report, and the instance is replaced, so later calls are unaffected.
func (s *Shim) Add(ctx context.Context, a, b int32) (int32, error) {
	inst, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	if inst == nil {
		if inst, err = s.instantiate(ctx); err != nil {
			s.release(nil)
			return 0, err
		}
	}

	results, err := inst.add.Call(ctx, api.EncodeI32(a), api.EncodeI32(b))
	if err != nil {
		trapErr := s.trap(inst.name, err)
		s.discard(ctx, inst)
		s.release(nil)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("add: %w", ctxErr)
		}
		return 0, trapErr
	}
	s.release(inst)
	return api.DecodeI32(results[0]), nil
}

// acquire takes an instance slot, waiting until one is free.
func (s *Shim) acquire(ctx context.Context) (*instance, error) {
	select {
	case <-s.done:
		return nil, ErrClosed
	default:
	}
	select {
	case inst := <-s.pool:
		return inst, nil
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// release returns a slot. After Close the instance is already closed with the
// runtime, so only its writers need flushing.
func (s *Shim) release(inst *instance) {
	select {
	case <-s.done:
		if inst != nil {
			inst.closeWriters()
		}
	default:
		s.pool <- inst
	}
}

func (s *Shim) discard(ctx context.Context, inst *instance) {
	if err := inst.mod.Close(ctx); err != nil {
		s.log.Debug("close trapped instance", zap.String("module", inst.name), zap.Error(err))
	}
	inst.closeWriters()
	s.diag.forget(inst.name)
}

func (s *Shim) trap(name string, err error) error {
	return &TrapError{Module: name, Diagnostic: s.diag.take(name), Err: err}
}

// Diagnostics returns the most recent panic reports received from the guest,
// oldest first.
func (s *Shim) Diagnostics() []Diagnostic {
	return s.diag.list()
}

// HookInstalls returns how many times guest instances announced their panic
// hook. A healthy Go guest announces once per instantiation.
func (s *Shim) HookInstalls() int {
	return s.diag.installCount()
}

// Instances returns the number of instance slots.
func (s *Shim) Instances() int {
	return s.cfg.instances
}

// Close closes all guest instances and the runtime. Calls in flight fail.
// Close is safe to call more than once.
func (s *Shim) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.rt.Close(ctx)
		for len(s.pool) > 0 {
			if inst := <-s.pool; inst != nil {
				inst.closeWriters()
			}
		}
	})
	return s.closeErr
}

func (i *instance) closeWriters() {
	_ = i.stdout.Close()
	_ = i.stderr.Close()
}

// stringWriter adapts zapio.Writer to logging.Writer.
type stringWriter struct {
	*zapio.Writer
}

func (w *stringWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func configOf(cfg Config) *config {
	if c, ok := cfg.(*config); ok && c != nil {
		return c
	}
	return defaultConfig.clone()
}

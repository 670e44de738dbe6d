// Command wasmshim loads the addwasm guest and calls it.
//
//	wasmshim add 2 3                 # 2 + 3 = 5
//	wasmshim add -- -5 5             # negative operands follow --
//	wasmshim check                   # runs the guest against native Go
//	wasmshim batch pairs.txt         # "a b" per line, stdin when omitted
//	wasmshim watch                   # re-checks the guest on every rebuild
//	wasmshim compile --cachedir .c   # pre-compiles the guest
//
// Settings come from --config (YAML), overridden by flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gramcheck/wasmshim"
	"github.com/gramcheck/wasmshim/internal/config"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer, exit func(code int)) {
	cmd := newRootCmd(os.Stdin, stdOut, stdErr)
	cmd.SetArgs(os.Args[1:])

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		exit(0)
		return
	}
	fmt.Fprintf(stdErr, "error: %v\n", err)

	// Like running the guest directly, a guest exit becomes ours.
	var trapErr *wasmshim.TrapError
	if errors.As(err, &trapErr) {
		if code, exited := trapErr.ExitCode(); exited && code != 0 {
			exit(int(code))
			return
		}
	}
	exit(1)
}

// options holds the global flags, then the settings resolved from them.
type options struct {
	configPath  string
	wasm        string
	cacheDir    string
	logLevel    string
	instances   int
	hostLogging bool

	stdOut, stdErr io.Writer
	cfg            config.Config
	log            *zap.Logger
}

func newRootCmd(stdIn io.Reader, stdOut, stdErr io.Writer) *cobra.Command {
	o := &options{stdOut: stdOut, stdErr: stdErr}
	def := config.Default()

	root := &cobra.Command{
		Use:   "wasmshim",
		Short: "Calls the add function of a WebAssembly guest",
		Long: `wasmshim loads a WebAssembly guest exporting add(i32, i32) i32, such as
one built from cmd/addwasm, and calls it. Guest panics are reported through
the diag host module and logged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.resolve(cmd)
		},
	}
	root.SetIn(stdIn)
	root.SetOut(stdOut)
	root.SetErr(stdErr)

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "YAML file with default settings")
	flags.StringVar(&o.wasm, "wasm", def.Wasm, "path to the guest")
	flags.StringVar(&o.cacheDir, "cachedir", "", "Writeable directory for native code compiled from wasm. "+
		"Contents are re-used for the same version of wazero.")
	flags.StringVar(&o.logLevel, "log-level", def.LogLevel, "debug, info, warn or error")
	flags.IntVar(&o.instances, "instances", def.Instances, "guest instances, bounding concurrent calls")
	flags.BoolVar(&o.hostLogging, "hostlogging", false, "log host function calls made by the guest, at debug level")

	root.AddCommand(
		newAddCmd(o),
		newCheckCmd(o),
		newBatchCmd(o),
		newWatchCmd(o),
		newCompileCmd(o),
		newVersionCmd(o),
	)
	return root
}

// resolve loads the config file, applies the flags set on the command line
// and builds the logger.
func (o *options) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("wasm") {
		cfg.Wasm = o.wasm
	}
	if flags.Changed("cachedir") {
		cfg.CacheDir = o.cacheDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("instances") {
		cfg.Instances = o.instances
	}
	if flags.Changed("hostlogging") {
		cfg.HostLogging = o.hostLogging
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	o.log = newLogger(o.stdErr, cfg.LogLevel)
	return nil
}

// newLogger writes human-readable logs to w. level was validated with the
// config.
func newLogger(w io.Writer, level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core).Named("wasmshim")
}

// shimConfig returns the library configuration for the resolved settings.
func (o *options) shimConfig(cache wazero.CompilationCache) wasmshim.Config {
	c := wasmshim.NewConfig().
		WithInstances(o.cfg.Instances).
		WithLogger(o.log).
		WithHostLogging(o.cfg.HostLogging)
	if cache != nil {
		c = c.WithCompilationCache(cache)
	}
	return c
}

// load opens the configured guest. Callers close the returned Shim and cache.
func (o *options) load(ctx context.Context) (*wasmshim.Shim, wazero.CompilationCache, error) {
	cache, err := wasmshim.NewCompilationCache(o.cfg.CacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cachedir: %w", err)
	}
	s, err := wasmshim.Load(ctx, o.cfg.Wasm, o.shimConfig(cache))
	if err != nil {
		_ = cache.Close(ctx)
		return nil, nil, err
	}
	return s, cache, nil
}

// withShim runs fn against the configured guest, closing it afterwards.
func (o *options) withShim(ctx context.Context, fn func(*wasmshim.Shim) error) error {
	s, cache, err := o.load(ctx)
	if err != nil {
		return err
	}
	defer cache.Close(ctx)
	defer s.Close(ctx)
	return fn(s)
}

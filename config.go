package wasmshim

import (
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// Config controls how New loads and runs the guest, with the default
// implementation as NewConfig.
//
// Note: Config is immutable. Each WithXXX function returns a new instance
// including the corresponding change.
type Config interface {
	// WithInstances sets how many guest instances are kept, which bounds the
	// number of concurrent Shim.Add calls. Values below one are treated as
	// one. Defaults to one.
	WithInstances(n int) Config

	// WithCompilationCache reuses compiled guests across runtimes. The caller
	// owns the cache and closes it after every Shim using it is closed.
	//
	// See NewCompilationCache
	WithCompilationCache(wazero.CompilationCache) Config

	// WithLogger sets the logger for diagnostics and guest output. Defaults to
	// zap.NewNop.
	WithLogger(*zap.Logger) Config

	// WithStartFunctions sets the functions run once per instance when it is
	// instantiated. Defaults to "_initialize", which a Go guest built with
	// -buildmode=c-shared uses to run its init functions (installing the
	// panic hook). Missing functions are skipped.
	WithStartFunctions(...string) Config

	// WithCloseOnContextDone aborts a guest call when its context is done.
	// The aborted instance is discarded. Defaults to false.
	WithCloseOnContextDone(bool) Config

	// WithHostLogging logs every host function call the guest makes, at debug
	// level. Defaults to false.
	WithHostLogging(bool) Config
}

// NewConfig returns a Config with the defaults documented on each method.
func NewConfig() Config {
	return defaultConfig.clone()
}

type config struct {
	instances          int
	cache              wazero.CompilationCache
	log                *zap.Logger
	startFunctions     []string
	closeOnContextDone bool
	hostLogging        bool
}

var defaultConfig = &config{
	instances:      1,
	log:            zap.NewNop(),
	startFunctions: []string{initializeExport},
}

// clone makes a deep copy of this config.
func (c *config) clone() *config {
	ret := *c
	ret.startFunctions = append([]string(nil), c.startFunctions...)
	return &ret
}

// WithInstances implements Config.WithInstances
func (c *config) WithInstances(n int) Config {
	if n < 1 {
		n = 1
	}
	ret := c.clone()
	ret.instances = n
	return ret
}

// WithCompilationCache implements Config.WithCompilationCache
func (c *config) WithCompilationCache(cache wazero.CompilationCache) Config {
	ret := c.clone()
	ret.cache = cache
	return ret
}

// WithLogger implements Config.WithLogger
func (c *config) WithLogger(log *zap.Logger) Config {
	if log == nil {
		log = zap.NewNop()
	}
	ret := c.clone()
	ret.log = log
	return ret
}

// WithStartFunctions implements Config.WithStartFunctions
func (c *config) WithStartFunctions(names ...string) Config {
	ret := c.clone()
	ret.startFunctions = append([]string(nil), names...)
	return ret
}

// WithCloseOnContextDone implements Config.WithCloseOnContextDone
func (c *config) WithCloseOnContextDone(enabled bool) Config {
	ret := c.clone()
	ret.closeOnContextDone = enabled
	return ret
}

// WithHostLogging implements Config.WithHostLogging
func (c *config) WithHostLogging(enabled bool) Config {
	ret := c.clone()
	ret.hostLogging = enabled
	return ret
}

package wasmshim

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

func TestConfig(t *testing.T) {
	cache := wazero.NewCompilationCache()
	defer cache.Close(testCtx)
	log := zap.NewExample()

	tests := []struct {
		name     string
		with     func(Config) Config
		expected func(*config)
	}{
		{
			name: "instances",
			with: func(c Config) Config { return c.WithInstances(4) },
			expected: func(c *config) {
				c.instances = 4
			},
		},
		{
			name: "instances below one",
			with: func(c Config) Config { return c.WithInstances(-3) },
			expected: func(c *config) {
				c.instances = 1
			},
		},
		{
			name: "compilation cache",
			with: func(c Config) Config { return c.WithCompilationCache(cache) },
			expected: func(c *config) {
				c.cache = cache
			},
		},
		{
			name: "logger",
			with: func(c Config) Config { return c.WithLogger(log) },
			expected: func(c *config) {
				c.log = log
			},
		},
		{
			name: "start functions",
			with: func(c Config) Config { return c.WithStartFunctions("_start", "init") },
			expected: func(c *config) {
				c.startFunctions = []string{"_start", "init"}
			},
		},
		{
			name: "no start functions",
			with: func(c Config) Config { return c.WithStartFunctions() },
			expected: func(c *config) {
				c.startFunctions = []string{}
			},
		},
		{
			name: "close on context done",
			with: func(c Config) Config { return c.WithCloseOnContextDone(true) },
			expected: func(c *config) {
				c.closeOnContextDone = true
			},
		},
		{
			name: "host logging",
			with: func(c Config) Config { return c.WithHostLogging(true) },
			expected: func(c *config) {
				c.hostLogging = true
			},
		},
	}

	for _, tc := range tests {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			input := NewConfig()
			rc := tt.with(input).(*config)

			expected := defaultConfig.clone()
			tt.expected(expected)
			requireConfigEqual(t, expected, rc)

			// The source wasn't modified
			requireConfigEqual(t, defaultConfig, input.(*config))
		})
	}
}

func TestConfig_NilLogger(t *testing.T) {
	c := NewConfig().WithLogger(nil).(*config)
	require.NotNil(t, c.log)
}

func TestConfigOf(t *testing.T) {
	requireConfigEqual(t, defaultConfig, configOf(nil))
	c := NewConfig().WithInstances(3)
	require.Same(t, c, configOf(c))
}

func requireConfigEqual(t *testing.T, expected, actual *config) {
	t.Helper()
	require.Equal(t, expected.instances, actual.instances)
	require.Equal(t, expected.cache, actual.cache)
	require.Same(t, expected.log, actual.log)
	require.Equal(t, len(expected.startFunctions), len(actual.startFunctions))
	for i := range expected.startFunctions {
		require.Equal(t, expected.startFunctions[i], actual.startFunctions[i])
	}
	require.Equal(t, expected.closeOnContextDone, actual.closeOnContextDone)
	require.Equal(t, expected.hostLogging, actual.hostLogging)
}

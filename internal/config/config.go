// Package config loads the wasmshim CLI configuration from YAML.
//
// Every field is optional; command-line flags override file values.
//
//	wasm: build/addwasm.wasm
//	cacheDir: ~/.cache/wasmshim
//	instances: 4
//	logLevel: debug
//	hostLogging: true
//	watch:
//	  debounce: 250ms
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultWasm is the guest path used when none is configured.
const DefaultWasm = "addwasm.wasm"

// Config is the file representation of the CLI settings.
type Config struct {
	// Wasm is the path to the guest module.
	Wasm string `yaml:"wasm"`
	// CacheDir, when set, persists compiled guests between runs.
	CacheDir string `yaml:"cacheDir"`
	// Instances bounds concurrent calls into the guest.
	Instances int `yaml:"instances"`
	// LogLevel is a zap level name such as "info" or "debug".
	LogLevel string `yaml:"logLevel"`
	// HostLogging logs every host function call made by the guest.
	HostLogging bool `yaml:"hostLogging"`

	Watch Watch `yaml:"watch"`
}

// Watch configures the watch command.
type Watch struct {
	// Debounce coalesces bursts of file events, as emitted while a build
	// rewrites the guest.
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Wasm:      DefaultWasm,
		Instances: 1,
		LogLevel:  "info",
		Watch:     Watch{Debounce: 250 * time.Millisecond},
	}
}

// Load reads path over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML over Default and validates the result. Unknown fields are
// rejected so typos do not silently fall back to defaults.
func Parse(b []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Wasm == "" {
		return errors.New("invalid config: wasm must not be empty")
	}
	if c.Instances < 1 {
		return fmt.Errorf("invalid config: instances must be at least 1, got %d", c.Instances)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid config: watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}

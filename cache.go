package wasmshim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
)

// NewCompilationCache returns a cache for Config.WithCompilationCache.
//
// With an empty dir the cache is in memory and only helps when several Shims
// load the same guest in one process, for example across reloads in watch
// mode. Otherwise compiled guests are persisted under dir, which is created
// if needed, and reused by later processes.
//
// Note: The embedder must safeguard this directory from external changes.
func NewCompilationCache(dir string) (wazero.CompilationCache, error) {
	if dir == "" {
		return wazero.NewCompilationCache(), nil
	}

	// Resolve a potentially relative directory into an absolute one.
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	// Ensure the user-supplied directory.
	if err = mkdir(dir); err != nil {
		return nil, err
	}

	// wazero adds a version-specific subdirectory to avoid conflicts.
	return wazero.NewCompilationCacheWithDir(dir)
}

func mkdir(dirname string) error {
	if st, err := os.Stat(dirname); errors.Is(err, os.ErrNotExist) {
		// If the directory not found, create the cache dir.
		if err = os.MkdirAll(dirname, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %v", dirname, err)
		}
	} else if err != nil {
		return err
	} else if !st.IsDir() {
		return fmt.Errorf("%s is not dir", dirname)
	}
	return nil
}

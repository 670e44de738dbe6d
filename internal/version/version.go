// Package version reports the version of wasmshim and of the wazero runtime
// linked into it.
package version

import (
	"runtime/debug"
	"strings"
)

// Default is used when the binary was built from a working tree.
const Default = "dev"

const wazeroPath = "github.com/tetratelabs/wazero"

// GetVersion returns the main module version, or Default when unknown.
func GetVersion() string {
	return mainVersion(debug.ReadBuildInfo())
}

// GetWazeroVersion returns the version of wazero in the go.mod of the main
// module, or Default when it cannot be determined.
func GetWazeroVersion() string {
	return depVersion(wazeroPath)(debug.ReadBuildInfo())
}

func mainVersion(info *debug.BuildInfo, ok bool) string {
	if !ok || info == nil {
		return Default
	}
	return cleanVersion(info.Main.Version)
}

func depVersion(path string) func(*debug.BuildInfo, bool) string {
	return func(info *debug.BuildInfo, ok bool) string {
		if !ok || info == nil {
			return Default
		}
		for _, dep := range info.Deps {
			if dep.Path != path {
				continue
			}
			// Inside the wasmshim repository itself the dependency may be
			// replaced by a local copy.
			if dep.Replace != nil && dep.Replace.Version != "" {
				return cleanVersion(dep.Replace.Version)
			}
			return cleanVersion(dep.Version)
		}
		return Default
	}
}

func cleanVersion(v string) string {
	// "(devel)" is what the toolchain records for a working tree build.
	if v == "" || v == "(devel)" {
		return Default
	}
	// Drop "+incompatible" and "+dirty" build suffixes.
	if i := strings.IndexByte(v, '+'); i > 0 {
		v = v[:i]
	}
	return v
}

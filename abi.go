package wasmshim

import (
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Names of the guest exports.
const (
	addExport        = "add"
	initializeExport = "_initialize"
)

// goJSModuleNames are the import modules used by GOOS=js builds, depending on
// the Go version.
var goJSModuleNames = map[string]struct{}{"go": {}, "gojs": {}}

// abi summarizes what a compiled guest needs from the host.
type abi struct {
	needsWASI bool
	needsDiag bool
}

// checkABI validates the add export and detects the host modules to
// instantiate.
func checkABI(compiled wazero.CompiledModule) (abi, error) {
	var ret abi
	for _, f := range compiled.ImportedFunctions() {
		moduleName, _, _ := f.Import()
		switch moduleName {
		case wasi_snapshot_preview1.ModuleName:
			ret.needsWASI = true
		case diagModuleName:
			ret.needsDiag = true
		default:
			if _, ok := goJSModuleNames[moduleName]; ok {
				return abi{}, ErrUnsupportedABI
			}
		}
	}

	add, ok := compiled.ExportedFunctions()[addExport]
	if !ok {
		return abi{}, ErrMissingExport
	}
	if !isI32Signature(add.ParamTypes(), 2) || !isI32Signature(add.ResultTypes(), 1) {
		return abi{}, fmt.Errorf("%w, got %s", ErrSignature, signature(add))
	}
	return ret, nil
}

func isI32Signature(types []api.ValueType, n int) bool {
	if len(types) != n {
		return false
	}
	for _, t := range types {
		if t != api.ValueTypeI32 {
			return false
		}
	}
	return true
}

// signature formats a function type like "(i64, i64) -> i64".
func signature(f api.FunctionDefinition) string {
	return valueTypes(f.ParamTypes()) + " -> " + valueTypes(f.ResultTypes())
}

func valueTypes(types []api.ValueType) string {
	s := "("
	for i, t := range types {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(t)
	}
	return s + ")"
}

package wasmshim

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/gramcheck/wasmshim/internal/testing/wasmbin"
)

func TestCheckABI(t *testing.T) {
	tests := []struct {
		name        string
		wasm        []byte
		expected    abi
		expectedErr string
	}{
		{name: "go guest", wasm: wasmbin.AddGuest(), expected: abi{needsDiag: true}},
		{name: "bare guest", wasm: wasmbin.BareAddGuest()},
		{name: "wasi guest", wasm: wasmbin.ExitingGuest(1, "x"), expected: abi{needsWASI: true, needsDiag: true}},
		{name: "js guest", wasm: wasmbin.JSGuest(), expectedErr: ErrUnsupportedABI.Error()},
		{name: "missing add", wasm: wasmbin.NoAddGuest(), expectedErr: ErrMissingExport.Error()},
		{
			name:        "wrong signature",
			wasm:        wasmbin.WideAddGuest(),
			expectedErr: ErrSignature.Error() + ", got (i64, i64) -> (i64)",
		},
	}

	r := wazero.NewRuntime(testCtx)
	defer r.Close(testCtx)

	for _, tc := range tests {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := r.CompileModule(testCtx, tt.wasm)
			require.NoError(t, err)
			defer compiled.Close(testCtx)

			needs, err := checkABI(compiled)
			if tt.expectedErr != "" {
				require.EqualError(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, needs)
		})
	}
}

func TestSignature(t *testing.T) {
	r := wazero.NewRuntime(testCtx)
	defer r.Close(testCtx)

	compiled, err := r.CompileModule(testCtx, wasmbin.AddGuest())
	require.NoError(t, err)

	require.Equal(t, "(i32, i32) -> (i32)", signature(compiled.ExportedFunctions()[addExport]))
	require.Equal(t, "(i32, i32) -> ()", signature(compiled.ImportedFunctions()[0]))
}

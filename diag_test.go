package wasmshim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gramcheck/wasmshim/internal/leb128"
	"github.com/gramcheck/wasmshim/internal/testing/wasmbin"
)

// reportingGuest returns a guest whose add calls diag.report(ptr, size)
// before adding, without trapping.
func reportingGuest(ptr, size int32, memory *wasmbin.Memory) []byte {
	body := []byte{wasmbin.OpcodeI32Const}
	body = append(body, leb128.EncodeInt32(ptr)...)
	body = append(body, wasmbin.OpcodeI32Const)
	body = append(body, leb128.EncodeInt32(size)...)
	body = append(body,
		wasmbin.OpcodeCall, 0,
		wasmbin.OpcodeLocalGet, 0,
		wasmbin.OpcodeLocalGet, 1,
		wasmbin.OpcodeI32Add,
		wasmbin.OpcodeEnd)

	return wasmbin.Encode(&wasmbin.Module{
		Types: []wasmbin.FunctionType{
			{Params: []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32}},
			{
				Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32},
				Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
			},
		},
		Imports: []wasmbin.Import{{Module: "diag", Name: "report", TypeIndex: 0}},
		Funcs:   []wasmbin.Func{{TypeIndex: 1, Body: body}},
		Memory:  memory,
		Exports: []wasmbin.Export{{Name: "add", Type: wasmbin.ExternTypeFunc, Index: 1}},
		Data:    dataFor(memory, "hello"),
	})
}

func dataFor(memory *wasmbin.Memory, s string) []wasmbin.DataSegment {
	if memory == nil {
		return nil
	}
	return []wasmbin.DataSegment{{Offset: 0, Init: []byte(s)}}
}

func TestDiagnostics_Report(t *testing.T) {
	tests := []struct {
		name      string
		ptr, size int32
		memory    *wasmbin.Memory
		expected  string
	}{
		{
			name:     "valid",
			ptr:      0,
			size:     5,
			memory:   &wasmbin.Memory{Min: 1},
			expected: "hello",
		},
		{
			name:     "empty",
			ptr:      0,
			size:     0,
			memory:   &wasmbin.Memory{Min: 1},
			expected: "",
		},
		{
			name:     "out of range",
			ptr:      65536,
			size:     10,
			memory:   &wasmbin.Memory{Min: 1},
			expected: "<invalid diagnostic ptr=65536 len=10>",
		},
		{
			name:     "no memory",
			ptr:      0,
			size:     10,
			expected: "<invalid diagnostic ptr=0 len=10: no memory>",
		},
	}

	for _, tc := range tests {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.ErrorLevel)
			s, err := New(testCtx, reportingGuest(tt.ptr, tt.size, tt.memory), NewConfig().WithLogger(zap.New(core)))
			require.NoError(t, err)
			defer s.Close(testCtx)

			now := time.Unix(1640995200, 0)
			s.diag.now = func() time.Time { return now }

			// A bad report never fails the call.
			sum, err := s.Add(testCtx, 2, 3)
			require.NoError(t, err)
			require.Equal(t, int32(5), sum)

			diags := s.Diagnostics()
			require.Len(t, diags, 1)
			require.Equal(t, Diagnostic{Module: diags[0].Module, Message: tt.expected, Time: now}, diags[0])
			require.Contains(t, diags[0].Module, instanceNamePrefix)
			require.Equal(t, 1, logs.FilterMessage("guest panicked").FilterField(zap.String("report", tt.expected)).Len())
		})
	}
}

func TestDiagnostics_InstalledTwice(t *testing.T) {
	bin := wasmbin.Encode(&wasmbin.Module{
		Types: []wasmbin.FunctionType{
			{},
			{
				Params:  []wasmbin.ValueType{wasmbin.ValueTypeI32, wasmbin.ValueTypeI32},
				Results: []wasmbin.ValueType{wasmbin.ValueTypeI32},
			},
		},
		Imports: []wasmbin.Import{{Module: "diag", Name: "installed", TypeIndex: 0}},
		Funcs: []wasmbin.Func{
			{TypeIndex: 1, Body: []byte{wasmbin.OpcodeLocalGet, 0, wasmbin.OpcodeLocalGet, 1, wasmbin.OpcodeI32Add, wasmbin.OpcodeEnd}},
			{TypeIndex: 0, Body: []byte{wasmbin.OpcodeCall, 0, wasmbin.OpcodeCall, 0, wasmbin.OpcodeEnd}},
		},
		Exports: []wasmbin.Export{
			{Name: "add", Type: wasmbin.ExternTypeFunc, Index: 1},
			{Name: "_initialize", Type: wasmbin.ExternTypeFunc, Index: 2},
		},
	})

	core, logs := observer.New(zap.DebugLevel)
	s, err := New(testCtx, bin, NewConfig().WithLogger(zap.New(core)))
	require.NoError(t, err)
	defer s.Close(testCtx)

	require.Equal(t, 2, s.HookInstalls())
	require.Equal(t, 1, logs.FilterMessage("panic hook installed").Len())
	warnings := logs.FilterMessage("panic hook installed more than once").All()
	require.Len(t, warnings, 1)
	require.Equal(t, zap.WarnLevel, warnings[0].Level)
	require.Equal(t, int64(2), warnings[0].ContextMap()["count"])
}

func TestDiagnostics_TakeAndForget(t *testing.T) {
	d := newDiagnostics(zap.NewNop())
	d.pending["a"] = "boom"
	d.pending["b"] = "bang"

	require.Equal(t, "boom", d.take("a"))
	require.Empty(t, d.take("a"))

	d.forget("b")
	require.Empty(t, d.take("b"))
}

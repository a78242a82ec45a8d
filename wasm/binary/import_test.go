package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcheck/wasmcheck/wasm"
)

func TestImport(t *testing.T) {
	ptrOfUint32 := func(v uint32) *uint32 { return &v }

	tests := []struct {
		name     string
		input    wasm.Import
		expected []byte
	}{
		{
			name: "func",
			input: wasm.Import{
				Module: "env", Name: "f",
				Type:     wasm.ExternTypeFunc,
				DescFunc: 2,
			},
			expected: []byte{
				0x03, 'e', 'n', 'v', 0x01, 'f',
				wasm.ExternTypeFunc, 0x02,
			},
		},
		{
			name: "table",
			input: wasm.Import{
				Module: "env", Name: "t",
				Type:      wasm.ExternTypeTable,
				DescTable: wasm.Table{Min: 1, Max: ptrOfUint32(2), Type: wasm.RefTypeFuncref},
			},
			expected: []byte{
				0x03, 'e', 'n', 'v', 0x01, 't',
				wasm.ExternTypeTable, wasm.RefTypeFuncref, 0x1, 1, 2,
			},
		},
		{
			name: "memory",
			input: wasm.Import{
				Module: "env", Name: "m",
				Type:    wasm.ExternTypeMemory,
				DescMem: &wasm.Memory{Min: 1, Max: 2, IsMaxEncoded: true},
			},
			expected: []byte{
				0x03, 'e', 'n', 'v', 0x01, 'm',
				wasm.ExternTypeMemory, 0x1, 1, 2,
			},
		},
		{
			name: "global const",
			input: wasm.Import{
				Module: "env", Name: "g",
				Type:       wasm.ExternTypeGlobal,
				DescGlobal: wasm.GlobalType{ValType: wasm.ValueTypeF64},
			},
			expected: []byte{
				0x03, 'e', 'n', 'v', 0x01, 'g',
				wasm.ExternTypeGlobal, wasm.ValueTypeF64, 0x00,
			},
		},
		{
			name: "global var",
			input: wasm.Import{
				Module: "env", Name: "g",
				Type:       wasm.ExternTypeGlobal,
				DescGlobal: wasm.GlobalType{ValType: wasm.ValueTypeF64, Mutable: true},
			},
			expected: []byte{
				0x03, 'e', 'n', 'v', 0x01, 'g',
				wasm.ExternTypeGlobal, wasm.ValueTypeF64, 0x01,
			},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run("encode - "+tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, encodeImport(&tc.input))
		})

		t.Run("decode - "+tc.name, func(t *testing.T) {
			imp, err := decodeImport(bytes.NewReader(tc.expected), wasm.Features20220419, wasm.MemoryLimitPages, false)
			require.NoError(t, err)
			require.Equal(t, tc.input, imp)
		})
	}
}

func TestDecodeImport_Errors(t *testing.T) {
	tests := []struct {
		name        string
		input       []byte
		features    wasm.Features
		expectedErr string
	}{
		{
			name:        "empty",
			input:       []byte{},
			features:    wasm.Features20220419,
			expectedErr: "failed to read import module size: EOF",
		},
		{
			name:        "module name not UTF-8",
			input:       []byte{0x01, 0xff},
			features:    wasm.Features20220419,
			expectedErr: "import module is not valid UTF-8",
		},
		{
			name:        "missing kind",
			input:       []byte{0x01, 'a', 0x01, 'b'},
			features:    wasm.Features20220419,
			expectedErr: "error decoding import kind: EOF",
		},
		{
			name:        "invalid kind",
			input:       []byte{0x01, 'a', 0x01, 'b', 0x05},
			features:    wasm.Features20220419,
			expectedErr: "invalid byte: invalid byte for importdesc: 0x5",
		},
		{
			name:        "missing func type index",
			input:       []byte{0x01, 'a', 0x01, 'b', wasm.ExternTypeFunc},
			features:    wasm.Features20220419,
			expectedErr: "error decoding import func typeindex: EOF",
		},
		{
			name:        "tag before feature",
			input:       []byte{0x01, 'a', 0x01, 'b', wasm.ExternTypeTag, 0x00, 0x00},
			features:    wasm.Features20220419,
			expectedErr: `tag import invalid as feature "exception-handling" is disabled`,
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeImport(bytes.NewReader(tc.input), tc.features, wasm.MemoryLimitPages, false)
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}

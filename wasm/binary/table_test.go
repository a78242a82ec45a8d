package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

func TestTable(t *testing.T) {
	three := uint32(3)

	tests := []struct {
		name     string
		input    wasm.Table
		expected []byte
	}{
		{
			name:     "funcref no max",
			input:    wasm.Table{Min: 1, Type: wasm.RefTypeFuncref},
			expected: []byte{wasm.RefTypeFuncref, 0x0, 1},
		},
		{
			name:     "funcref min max",
			input:    wasm.Table{Min: 1, Max: &three, Type: wasm.RefTypeFuncref},
			expected: []byte{wasm.RefTypeFuncref, 0x1, 1, 3},
		},
		{
			name:     "externref no max",
			input:    wasm.Table{Min: 2, Type: wasm.RefTypeExternref},
			expected: []byte{wasm.RefTypeExternref, 0x0, 2},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run("encode - "+tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, encodeTable(&tc.input))
		})

		t.Run("decode - "+tc.name, func(t *testing.T) {
			table, err := decodeTable(bytes.NewReader(tc.expected), wasm.Features20220419, false)
			require.NoError(t, err)
			require.Equal(t, tc.input, table)
		})
	}
}

func TestDecodeTable_Errors(t *testing.T) {
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
			expectedErr: "read leading byte: EOF",
		},
		{
			name:        "not a reference type",
			input:       []byte{0x50, 0x0, 1},
			features:    wasm.Features20220419,
			expectedErr: "invalid table element type: 0x50",
		},
		{
			name:        "externref before feature",
			input:       []byte{wasm.RefTypeExternref, 0x0, 1},
			features:    wasm.Features20191205,
			expectedErr: `table type externref invalid as feature "reference-types" is disabled`,
		},
		{
			name:        "shared flag",
			input:       []byte{wasm.RefTypeFuncref, 0x2, 1},
			features:    wasm.Features20220419,
			expectedErr: "tables cannot be marked as shared",
		},
		{
			name:        "min over limit",
			input:       append([]byte{wasm.RefTypeFuncref, 0x0}, leb128.EncodeUint32(wasm.MaximumFunctionIndex+1)...),
			features:    wasm.Features20220419,
			expectedErr: "table min must be at most 134217728",
		},
		{
			name:        "max less than min",
			input:       []byte{wasm.RefTypeFuncref, 0x1, 2, 1},
			features:    wasm.Features20220419,
			expectedErr: "table size minimum must not be greater than maximum",
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeTable(bytes.NewReader(tc.input), tc.features, false)
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}
